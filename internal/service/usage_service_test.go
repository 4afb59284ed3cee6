package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const (
	hostelAID = "7a1f0e52-3c4d-4b6a-9e8f-0a1b2c3d4e5f"
	hostelBID = "8b2e1f63-4d5e-4c7b-8f9a-1b2c3d4e5f60"
)

type memoryUsageRepo struct {
	mu         sync.Mutex
	hostels    map[string]*models.Hostel
	usage      []models.ResourceUsage
	history    []models.UsagePoint
	historyHit int
	stats      models.DashboardStats
}

func newMemoryUsageRepo(hostels ...models.Hostel) *memoryUsageRepo {
	m := &memoryUsageRepo{hostels: map[string]*models.Hostel{}}
	for i := range hostels {
		h := hostels[i]
		m.hostels[h.ID] = &h
	}
	return m
}

func (m *memoryUsageRepo) ListHostels(context.Context) ([]models.Hostel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Hostel, 0, len(m.hostels))
	for _, h := range m.hostels {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryUsageRepo) FindHostel(_ context.Context, id string) (*models.Hostel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hostels[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *h
	return &clone, nil
}

func (m *memoryUsageRepo) CountHostels(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hostels), nil
}

func (m *memoryUsageRepo) CreateHostel(_ context.Context, hostel *models.Hostel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hostels {
		if h.Name == hostel.Name {
			return repository.ErrDuplicate
		}
	}
	hostel.ID = hostel.Name + "-id"
	clone := *hostel
	m.hostels[hostel.ID] = &clone
	return nil
}

func (m *memoryUsageRepo) DeleteHostel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hostels[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.hostels, id)
	return nil
}

func (m *memoryUsageRepo) CreateUsage(_ context.Context, rows []models.ResourceUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		row.ID = row.HostelID + row.Date.Format("-20060102")
		m.usage = append(m.usage, row)
	}
	return nil
}

func (m *memoryUsageRepo) FindUsage(_ context.Context, id string) (*models.ResourceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.usage {
		if m.usage[i].ID == id {
			clone := m.usage[i]
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsageRepo) ListPending(context.Context) ([]models.ResourceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ResourceUsage
	for _, u := range m.usage {
		if u.Status == models.UsagePending {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryUsageRepo) ListRecent(_ context.Context, limit int) ([]models.ResourceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.usage) < limit {
		limit = len(m.usage)
	}
	return append([]models.ResourceUsage(nil), m.usage[:limit]...), nil
}

func (m *memoryUsageRepo) ListAll(context.Context) ([]models.ResourceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResourceUsage(nil), m.usage...), nil
}

func (m *memoryUsageRepo) SetStatus(_ context.Context, id string, status models.UsageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.usage {
		if m.usage[i].ID == id && m.usage[i].Status == models.UsagePending {
			m.usage[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryUsageRepo) HostelHistory(context.Context, string, int) ([]models.UsagePoint, error) {
	return m.points(), nil
}

func (m *memoryUsageRepo) CampusHistory(context.Context, int) ([]models.UsagePoint, error) {
	return m.points(), nil
}

func (m *memoryUsageRepo) points() []models.UsagePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyHit++
	return append([]models.UsagePoint(nil), m.history...)
}

func (m *memoryUsageRepo) DashboardCounts(context.Context) (*models.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	return &stats, nil
}

type recordingAlerts struct {
	raised []*models.Alert
}

func (r *recordingAlerts) Raise(_ context.Context, alert *models.Alert) error {
	r.raised = append(r.raised, alert)
	return nil
}

type usageFixture struct {
	repo   *memoryUsageRepo
	alerts *recordingAlerts
	cache  *mapCache
	svc    *UsageService
}

func newUsageFixture() *usageFixture {
	repo := newMemoryUsageRepo(
		models.Hostel{ID: hostelAID, Name: "Aravali", Capacity: 200, Residents: 10},
		models.Hostel{ID: hostelBID, Name: "Nilgiri", Capacity: 200, Residents: 100},
	)
	alerts := &recordingAlerts{}
	store := newMapCache()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	svc := NewUsageService(repo, alerts, nil, cache, nil, nil, time.UTC, time.Minute)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC) }
	return &usageFixture{repo: repo, alerts: alerts, cache: store, svc: svc}
}

func TestSubmitLogsStoresPendingWithInsights(t *testing.T) {
	f := newUsageFixture()

	result, err := f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{
		{HostelID: hostelAID, Water: 2000, Electricity: 40, FoodWaste: 1},
		{HostelID: hostelBID, Date: "2024-03-09", Water: 100, Electricity: 100, FoodWaste: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Saved)
	require.Len(t, result.Insights, 1)
	assert.True(t, strings.HasPrefix(result.Insights[0], "Aravali: High Water Usage"))

	require.Len(t, f.repo.usage, 2)
	first := f.repo.usage[0]
	assert.Equal(t, models.UsagePending, first.Status)
	assert.Equal(t, models.UsageSourceManual, first.Source)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), f.repo.usage[1].Date)
	assert.Empty(t, f.alerts.raised)
}

func TestSubmitLogsRejectsUnknownHostel(t *testing.T) {
	f := newUsageFixture()

	_, err := f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{
		{HostelID: "9c3f2a74-5e6f-4d8c-9a0b-2c3d4e5f6a71", Water: 1},
	}})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.usage)
}

func TestDecideApprovalRaisesAlerts(t *testing.T) {
	f := newUsageFixture()
	_, err := f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{
		{HostelID: hostelAID, Water: 2000, Electricity: 50, FoodWaste: 1},
	}})
	require.NoError(t, err)
	id := f.repo.usage[0].ID

	usage, err := f.svc.Decide(context.Background(), id, models.ApproveUsageRequest{Status: models.UsageApproved})
	require.NoError(t, err)
	assert.Equal(t, models.UsageApproved, usage.Status)
	require.Len(t, f.alerts.raised, 1)
	alert := f.alerts.raised[0]
	assert.Equal(t, "Analysis: Water", alert.Type)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, hostelAID, *alert.HostelID)

	_, err = f.svc.Decide(context.Background(), id, models.ApproveUsageRequest{Status: models.UsageRejected})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Decide(context.Background(), "missing", models.ApproveUsageRequest{Status: models.UsageApproved})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDecideRejectionSkipsAnalysis(t *testing.T) {
	f := newUsageFixture()
	_, err := f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{
		{HostelID: hostelAID, Water: 5000},
	}})
	require.NoError(t, err)

	_, err = f.svc.Decide(context.Background(), f.repo.usage[0].ID, models.ApproveUsageRequest{Status: models.UsageRejected})
	require.NoError(t, err)
	assert.Empty(t, f.alerts.raised)
}

func TestImportCSVSkipsUnknownHostelsAndBadRows(t *testing.T) {
	f := newUsageFixture()
	body := strings.Join([]string{
		"HostelName,Date,Water,Electricity,FoodWaste",
		"Aravali,2024-03-08,2000,50,1",
		"Nilgiri,03/08/2024,1000,100,5",
		"Unknown,2024-03-08,10,10,1",
		"Aravali,not-a-date,10,10,1",
		"Nilgiri,2024-03-07,abc,10,1",
	}, "\n")

	result, err := f.svc.Import(context.Background(), "admin-1", "/tmp/march.csv", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 1, result.Alerts)

	require.Len(t, f.repo.usage, 2)
	for _, row := range f.repo.usage {
		assert.Equal(t, models.UsagePending, row.Status)
		assert.Equal(t, "march.csv", row.Source)
	}
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), f.repo.usage[1].Date)
}

func TestImportRejectsUnsupportedFile(t *testing.T) {
	f := newUsageFixture()

	_, err := f.svc.Import(context.Background(), "admin-1", "usage.json", strings.NewReader("{}"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnsupportedFileType))
}

func TestExportCSV(t *testing.T) {
	f := newUsageFixture()
	f.repo.usage = []models.ResourceUsage{{
		HostelName: "Aravali", Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Water: 1200.5, Electricity: 40, FoodWaste: 1.25, Status: models.UsageApproved, Source: "manual",
	}}

	body, filename, contentType, err := f.svc.Export(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "campus-resource-report.csv", filename)
	assert.Equal(t, "text/csv", contentType)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Hostel,Water,Electricity,Food Waste,Status,Source", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-08,Aravali,"))

	_, _, _, err = f.svc.Export(context.Background(), "docx")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAnalyticsComparesLatestPoints(t *testing.T) {
	f := newUsageFixture()
	f.repo.history = []models.UsagePoint{
		{Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Water: 150, Electricity: 40, FoodWaste: 3},
		{Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), Water: 100, Electricity: 50, FoodWaste: 0},
	}

	analytics, err := f.svc.Analytics(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, analytics.Comparison)
	assert.InDelta(t, 50, analytics.Comparison.WaterDiff, 0.001)
	assert.InDelta(t, -20, analytics.Comparison.ElecDiff, 0.001)
	assert.Zero(t, analytics.Comparison.WasteDiff)

	_, err = f.svc.Analytics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.historyHit)

	_, err = f.svc.SubmitLogs(context.Background(), "sec-1", models.DailyLogsRequest{Logs: []models.DailyLogEntry{{HostelID: hostelAID}}})
	require.NoError(t, err)
	_, err = f.svc.Analytics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.historyHit)
}

func TestAnalyticsSinglePointHasNoComparison(t *testing.T) {
	f := newUsageFixture()
	f.repo.history = []models.UsagePoint{{Water: 10}}

	analytics, err := f.svc.Analytics(context.Background(), hostelAID)
	require.NoError(t, err)
	assert.Nil(t, analytics.Comparison)
	assert.Len(t, analytics.History, 1)
}

func TestCreateHostel(t *testing.T) {
	f := newUsageFixture()

	hostel, err := f.svc.CreateHostel(context.Background(), models.CreateHostelRequest{Name: "  Shivalik ", Capacity: 120, Warden: "Dr. Rao"})
	require.NoError(t, err)
	assert.Equal(t, "Shivalik", hostel.Name)
	require.NotNil(t, hostel.Warden)

	_, err = f.svc.CreateHostel(context.Background(), models.CreateHostelRequest{Name: "Shivalik", Capacity: 10})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.CreateHostel(context.Background(), models.CreateHostelRequest{Name: "X"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCreateHostelEnforcesLimit(t *testing.T) {
	f := newUsageFixture()
	for i := len(f.repo.hostels); i < maxHostels; i++ {
		id := strings.Repeat("h", i+1)
		f.repo.hostels[id] = &models.Hostel{ID: id, Name: id}
	}

	_, err := f.svc.CreateHostel(context.Background(), models.CreateHostelRequest{Name: "Overflow", Capacity: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hostel limit (50) reached.")
}

func TestDeleteHostel(t *testing.T) {
	f := newUsageFixture()

	require.NoError(t, f.svc.DeleteHostel(context.Background(), hostelAID))
	err := f.svc.DeleteHostel(context.Background(), hostelAID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDashboardIsCached(t *testing.T) {
	f := newUsageFixture()
	f.repo.stats = models.DashboardStats{TotalStudents: 10, Hostelers: 6, DayScholars: 4}

	stats, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.DayScholars)

	f.repo.stats.TotalStudents = 99
	stats, err = f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalStudents)
}
