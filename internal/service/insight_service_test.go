package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

type stubTrendSource struct {
	rows  []models.ResourceUsage
	since time.Time
	calls int
}

func (s *stubTrendSource) UsageSince(_ context.Context, since time.Time) ([]models.ResourceUsage, error) {
	s.calls++
	s.since = since
	return s.rows, nil
}

type stubLibraries struct {
	libraries []models.Library
	err       error
}

func (s stubLibraries) List(context.Context) ([]models.Library, error) {
	return s.libraries, s.err
}

func usageRow(hostelID, name string, day int, water, electricity, food float64) models.ResourceUsage {
	return models.ResourceUsage{
		HostelID:    hostelID,
		HostelName:  name,
		Date:        time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Water:       water,
		Electricity: electricity,
		FoodWaste:   food,
	}
}

func spikingWeek() []models.ResourceUsage {
	return []models.ResourceUsage{
		usageRow(hostelAID, "Aravali", 7, 1000, 40, 2),
		usageRow(hostelAID, "Aravali", 8, 1000, 40, 2),
		usageRow(hostelAID, "Aravali", 9, 1300, 44, 2),
		usageRow(hostelBID, "Nilgiri", 9, 500, 10, 0),
	}
}

func TestTrendStatus(t *testing.T) {
	assert.Equal(t, models.InsightNormal, TrendStatus(104, 100))
	assert.Equal(t, models.InsightWarning, TrendStatus(106, 100))
	assert.Equal(t, models.InsightCritical, TrendStatus(116, 100))
	assert.Equal(t, models.InsightNormal, TrendStatus(50, 0))
}

func TestComputeTrendsComparesLatestToWeeklyAverage(t *testing.T) {
	trends := ComputeTrends(spikingWeek())

	assert.Equal(t, []string{"Aravali"}, trends.Water.Critical)
	assert.Empty(t, trends.Water.Warning)
	assert.Equal(t, []string{"Aravali"}, trends.Electricity.Warning)
	assert.Equal(t, models.InsightNormal, trends.FoodWaste.Status())
	assert.Equal(t, 1800.0, trends.WaterLatestTotal)
	assert.Equal(t, 1600.0, trends.WaterAverageSum)
}

func TestSustainabilityScoreClampsAtZero(t *testing.T) {
	assert.Equal(t, 100, SustainabilityScore(models.InsightNormal))
	assert.Equal(t, 70, SustainabilityScore(models.InsightCritical, models.InsightWarning, models.InsightNormal))
	assert.Equal(t, 0, SustainabilityScore(models.InsightCritical, models.InsightCritical, models.InsightCritical,
		models.InsightCritical, models.InsightCritical, models.InsightCritical))
}

func TestBuildInsightsBoard(t *testing.T) {
	board := BuildInsights(ComputeTrends(spikingWeek()), []models.Library{
		{Name: "Central", TotalSeats: 60, BookedSeats: 50},
		{Name: "Annex", TotalSeats: 40, BookedSeats: 30},
	})
	require.Len(t, board, 5)

	score := board[0]
	assert.Equal(t, "Campus Sustainability Score: 70/100", score.Headline)
	assert.Equal(t, models.InsightWarning, score.Status)
	assert.Equal(t, "Review critical alerts below.", score.SuggestedAction)

	water := board[1]
	assert.Equal(t, models.InsightCritical, water.Status)
	assert.Equal(t, "Significant spikes in: Aravali.", water.Insight)
	assert.Equal(t, "Check pipelines in: Aravali.", water.SuggestedAction)

	assert.Equal(t, models.InsightNormal, board[2].Status)
	assert.Equal(t, "Efficient kitchen operations.", board[2].Impact)

	assert.Equal(t, models.InsightWarning, board[3].Status)
	assert.Equal(t, "Audit appliances in: Aravali.", board[3].SuggestedAction)

	library := board[4]
	assert.Equal(t, "Library", library.Resource)
	assert.Equal(t, models.InsightWarning, library.Status)
	assert.Equal(t, "Occupancy at 80% (80/100 seats).", library.Insight)
}

func TestBuildInsightsCalmWeek(t *testing.T) {
	rows := []models.ResourceUsage{
		usageRow(hostelAID, "Aravali", 8, 900, 40, 2),
		usageRow(hostelAID, "Aravali", 9, 900, 40, 2),
	}
	board := BuildInsights(ComputeTrends(rows), nil)
	require.Len(t, board, 4)
	assert.Equal(t, "Campus Sustainability Score: 100/100", board[0].Headline)
	assert.Equal(t, models.InsightNormal, board[0].Status)
	assert.Equal(t, "Total Campus Usage: 900L (Avg: 900L).", board[1].Insight)
}

func TestFilterInsightsByAudience(t *testing.T) {
	board := BuildInsights(ComputeTrends(spikingWeek()), []models.Library{{TotalSeats: 10, BookedSeats: 10}})

	resources := func(in []models.Insight) []string {
		out := make([]string, 0, len(in))
		for _, i := range in {
			out = append(out, i.Resource)
		}
		return out
	}
	assert.Equal(t, []string{"Sustainability", "Water", "Library"}, resources(FilterInsights(board, models.AudienceStudent)))
	assert.Equal(t, []string{"Sustainability", "Water", "Food", "Electricity"}, resources(FilterInsights(board, models.AudienceStaff)))
	assert.Len(t, FilterInsights(board, models.AudienceAdmin), 5)
	assert.Len(t, FilterInsights(board, ""), 5)
}

func TestInsightServiceCachesTrendsForWeekWindow(t *testing.T) {
	source := &stubTrendSource{rows: spikingWeek()}
	store := newMapCache()
	svc := NewInsightService(source, stubLibraries{}, NewCacheService(store, nil, time.Minute, nil, true), nil, time.UTC, time.Minute)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC) }

	first, err := svc.Insights(context.Background(), models.AudienceStaff)
	require.NoError(t, err)
	second, err := svc.Insights(context.Background(), models.AudienceStaff)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), source.since)
	assert.Contains(t, store.entries, cacheKeyInsights)
}

func TestInsightServiceSkipsLibraryOnError(t *testing.T) {
	source := &stubTrendSource{rows: spikingWeek()}
	svc := NewInsightService(source, stubLibraries{err: errors.New("redis down")}, nil, nil, time.UTC, time.Minute)

	board, err := svc.Insights(context.Background(), models.AudienceAdmin)
	require.NoError(t, err)
	assert.Len(t, board, 4)
}

func TestUsageChangesDropCachedInsights(t *testing.T) {
	f := newUsageFixture()
	f.cache.entries[cacheKeyInsights] = []byte(`{}`)

	_, err := f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{
		{HostelID: hostelAID, Water: 100, Electricity: 10, FoodWaste: 1},
	}})
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, cacheKeyInsights)
}
