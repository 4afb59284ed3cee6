package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const trendWindowDays = 7

type usageTrendSource interface {
	UsageSince(ctx context.Context, since time.Time) ([]models.ResourceUsage, error)
}

type libraryLister interface {
	List(ctx context.Context) ([]models.Library, error)
}

// InsightService assembles the campus sustainability board.
type InsightService struct {
	usage     usageTrendSource
	libraries libraryLister
	cache     *CacheService
	logger    *zap.Logger
	loc       *time.Location
	ttl       time.Duration
	now       func() time.Time
}

// NewInsightService constructs the service. Weekly trends are cached for ttl
// and dropped whenever readings change.
func NewInsightService(usage usageTrendSource, libraries libraryLister, cache *CacheService, logger *zap.Logger, loc *time.Location, ttl time.Duration) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &InsightService{usage: usage, libraries: libraries, cache: cache, logger: logger, loc: loc, ttl: ttl, now: time.Now}
}

// Insights returns the board as seen by audience. An empty audience returns
// every insight.
func (s *InsightService) Insights(ctx context.Context, audience models.InsightAudience) ([]models.Insight, error) {
	trends, err := cached(ctx, s.cache, cacheKeyInsights, s.ttl, s.loadTrends)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compute usage trends")
	}

	libraries, err := s.libraries.List(ctx)
	if err != nil {
		s.logger.Warn("library occupancy unavailable for insights", zap.Error(err))
		libraries = nil
	}
	return FilterInsights(BuildInsights(trends, libraries), audience), nil
}

func (s *InsightService) loadTrends(ctx context.Context) (models.UsageTrends, error) {
	since := CampusDay(s.now(), s.loc).AddDate(0, 0, -trendWindowDays)
	rows, err := s.usage.UsageSince(ctx, since)
	if err != nil {
		return models.UsageTrends{}, err
	}
	return ComputeTrends(rows), nil
}
