package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const (
	eventAlertCreated = "alert.created"
	eventAlertTest    = "alert.test"
)

type alertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

// AlertService records usage alerts and pushes urgent ones to admins.
type AlertService struct {
	repo      alertRepository
	cache     *CacheService
	publisher Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAlertService constructs the service.
func NewAlertService(repo alertRepository, cache *CacheService, publisher Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AlertService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{repo: repo, cache: cache, publisher: publisher, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Raise stores an Open alert. High severity alerts are published to the
// Admin room.
func (s *AlertService) Raise(ctx context.Context, alert *models.Alert) error {
	alert.Status = models.AlertOpen
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return appErrors.Internal(err, "failed to create alert")
	}

	s.metrics.UsageAlert(alert.Severity)
	s.cache.Invalidate(ctx, cacheKeyDashboard)
	if alert.Severity == models.SeverityHigh && s.publisher != nil {
		s.publisher.Publish(string(models.RoleAdmin), eventAlertCreated, alert)
	}
	return nil
}

// List returns alerts, optionally filtered by status.
func (s *AlertService) List(ctx context.Context, status string) ([]models.Alert, error) {
	var filter models.AlertFilter
	if status = strings.TrimSpace(status); status != "" {
		st := models.AlertStatus(status)
		if st != models.AlertOpen && st != models.AlertResolved {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Open or Resolved")
		}
		filter.Status = &st
	}
	alerts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, nil
}

// Resolve closes an alert. Resolving twice keeps the first timestamp.
func (s *AlertService) Resolve(ctx context.Context, id string) error {
	if err := s.repo.Resolve(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Alert not found")
		}
		return appErrors.Internal(err, "failed to resolve alert")
	}
	s.cache.Invalidate(ctx, cacheKeyDashboard)
	return nil
}

// Test publishes a manual trigger and reports how many clients received it.
func (s *AlertService) Test(ctx context.Context, req models.TestAlertRequest) (int, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message is required")
	}
	if s.publisher == nil {
		return 0, nil
	}
	room := req.Room
	if room == "" {
		room = models.RoleAdmin
	}
	delivered := s.publisher.Publish(string(room), eventAlertTest, map[string]string{"message": req.Message})
	s.logger.Info("test alert published", zap.String("room", string(room)), zap.Int("delivered", delivered))
	return delivered, nil
}
