package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

type memoryAlertRepo struct {
	alerts []models.Alert
}

func (m *memoryAlertRepo) Create(_ context.Context, alert *models.Alert) error {
	alert.ID = "alert-" + string(rune('a'+len(m.alerts)))
	m.alerts = append(m.alerts, *alert)
	return nil
}

func (m *memoryAlertRepo) List(_ context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	out := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if filter.Status == nil || a.Status == *filter.Status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAlertRepo) Resolve(_ context.Context, id string, at time.Time) error {
	for i := range m.alerts {
		if m.alerts[i].ID != id {
			continue
		}
		if m.alerts[i].ResolvedAt == nil {
			m.alerts[i].ResolvedAt = &at
		}
		m.alerts[i].Status = models.AlertResolved
		return nil
	}
	return sql.ErrNoRows
}

func newAlertFixture() (*memoryAlertRepo, *recordingPublisher, *mapCache, *AlertService) {
	repo := &memoryAlertRepo{}
	pub := &recordingPublisher{}
	store := newMapCache()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	return repo, pub, store, NewAlertService(repo, cache, pub, nil, nil, nil)
}

func TestAlertRaisePublishesHighSeverityOnly(t *testing.T) {
	repo, pub, store, svc := newAlertFixture()
	store.entries[cacheKeyDashboard] = []byte(`{}`)

	require.NoError(t, svc.Raise(context.Background(), &models.Alert{Type: "Analysis: Water", Severity: models.SeverityHigh, Message: "critical"}))
	require.NoError(t, svc.Raise(context.Background(), &models.Alert{Type: "Analysis: Food Waste", Severity: models.SeverityMedium, Message: "warning"}))

	require.Len(t, repo.alerts, 2)
	assert.Equal(t, models.AlertOpen, repo.alerts[1].Status)
	assert.False(t, repo.alerts[0].CreatedAt.IsZero())
	assert.Equal(t, []string{"Admin:alert.created"}, pub.messages)
	assert.NotContains(t, store.entries, cacheKeyDashboard)
}

func TestAlertListFiltersByStatus(t *testing.T) {
	repo, _, _, svc := newAlertFixture()
	require.NoError(t, svc.Raise(context.Background(), &models.Alert{Type: "a", Severity: models.SeverityLow, Message: "x"}))
	require.NoError(t, svc.Raise(context.Background(), &models.Alert{Type: "b", Severity: models.SeverityLow, Message: "y"}))
	require.NoError(t, svc.Resolve(context.Background(), repo.alerts[0].ID))

	open, err := svc.List(context.Background(), "Open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].Type)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(context.Background(), "Closed")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAlertResolveKeepsFirstTimestamp(t *testing.T) {
	repo, _, _, svc := newAlertFixture()
	require.NoError(t, svc.Raise(context.Background(), &models.Alert{Type: "a", Severity: models.SeverityLow, Message: "x"}))
	first := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	require.NoError(t, svc.Resolve(context.Background(), repo.alerts[0].ID))

	svc.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, svc.Resolve(context.Background(), repo.alerts[0].ID))
	assert.Equal(t, first, *repo.alerts[0].ResolvedAt)

	err := svc.Resolve(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAlertTestDefaultsToAdminRoom(t *testing.T) {
	_, pub, _, svc := newAlertFixture()

	delivered, err := svc.Test(context.Background(), models.TestAlertRequest{Message: " ping "})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	_, err = svc.Test(context.Background(), models.TestAlertRequest{Message: "hi", Room: models.RoleSecurity})
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin:alert.test", "Security:alert.test"}, pub.messages)

	_, err = svc.Test(context.Background(), models.TestAlertRequest{Message: "  "})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
