package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

func TestUsageRepositoryListHostelsCountsResidents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "capacity", "warden", "created_at", "residents"}).
		AddRow("h1", "Ganga", 200, nil, time.Now(), 120)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users u ON u.hostel_id = h.id AND u.role = 'Student' GROUP BY h.id ORDER BY h.name ASC")).
		WillReturnRows(rows)

	hostels, err := repo.ListHostels(context.Background())
	require.NoError(t, err)
	require.Len(t, hostels, 1)
	assert.Equal(t, 120, hostels[0].Residents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepositoryCreateUsageBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resource_usage").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO resource_usage").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := []models.ResourceUsage{
		{HostelID: "h1", Date: time.Now(), Water: 100, Status: models.UsagePending, Source: models.UsageSourceManual},
		{HostelID: "h2", Date: time.Now(), Water: 200, Status: models.UsagePending, Source: models.UsageSourceManual},
	}
	require.NoError(t, repo.CreateUsage(context.Background(), rows))
	assert.NotEmpty(t, rows[0].ID)
	assert.NotEmpty(t, rows[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepositorySetStatusOnlyPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resource_usage SET status = $2 WHERE id = $1 AND status = 'Pending'")).
		WithArgs("r1", "Approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "r1", models.UsageApproved)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUsageRepositoryCampusHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"date", "water", "electricity", "food_waste"}).
		AddRow(day, 5000.0, 80.0, 4.5).
		AddRow(day.AddDate(0, 0, -1), 4000.0, 70.0, 4.0)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY date\nORDER BY date DESC\nLIMIT $1")).
		WithArgs(30).
		WillReturnRows(rows)

	points, err := repo.CampusHistory(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 5000.0, points[0].Water)
	assert.Empty(t, points[0].HostelName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepositoryUsageSince(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	since := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "hostel_id", "hostel_name", "date", "water", "electricity", "food_waste", "status", "source", "submitted_by", "created_at"}).
		AddRow("u-1", "h-1", "Aravali", since, 1000.0, 40.0, 2.0, "Approved", "manual", nil, since).
		AddRow("u-2", "h-1", "Aravali", since.AddDate(0, 0, 1), 1200.0, 42.0, 2.5, "Pending", "manual", nil, since)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.date >= $1 AND r.status <> 'Rejected'")).
		WithArgs(since).
		WillReturnRows(rows)

	usage, err := repo.UsageSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "Aravali", usage[1].HostelName)
	assert.Equal(t, 1200.0, usage[1].Water)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepositoryDashboardCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageRepository(db)

	rows := sqlmock.NewRows([]string{"total_students", "hostelers", "open_alerts", "pending_complaints", "pending_usage_logs"}).
		AddRow(500, 320, 4, 12, 3)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role = 'Student'").WillReturnRows(rows)

	stats, err := repo.DashboardCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180, stats.DayScholars)
	assert.Equal(t, 12, stats.PendingComplaints)
	assert.NoError(t, mock.ExpectationsWereMet())
}
