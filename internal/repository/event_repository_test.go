package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

func TestEventRepositoryBook(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	date := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE events SET booked_seats = booked_seats + 1 WHERE id = $1 AND booked_seats < total_seats RETURNING title, date, venue")).
		WithArgs("ev1").
		WillReturnRows(sqlmock.NewRows([]string{"title", "date", "venue"}).AddRow("TechFest", date, "Main Hall"))
	mock.ExpectExec("INSERT INTO event_bookings").
		WithArgs(sqlmock.AnyArg(), "ev1", "u1", "pay_1", "Confirmed", "PASS-u1-ev1-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking := &models.EventBooking{EventID: "ev1", UserID: "u1", PaymentID: "pay_1", PassCode: "PASS-u1-ev1-1"}
	require.NoError(t, repo.Book(context.Background(), booking))
	require.NotNil(t, booking.EventTitle)
	assert.Equal(t, "TechFest", *booking.EventTitle)
	assert.Equal(t, date, *booking.EventDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryBookFull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE events SET booked_seats").WillReturnRows(sqlmock.NewRows([]string{"title", "date", "venue"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.Book(context.Background(), &models.EventBooking{EventID: "ev1", UserID: "u1"})
	assert.ErrorIs(t, err, ErrCapacityReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryBookTwice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE events SET booked_seats").
		WillReturnRows(sqlmock.NewRows([]string{"title", "date", "venue"}).AddRow("TechFest", time.Now(), "Main Hall"))
	mock.ExpectExec("INSERT INTO event_bookings").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Book(context.Background(), &models.EventBooking{EventID: "ev1", UserID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryResolveUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET status = 'Resolved'")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAlertRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	status := models.AlertOpen
	rows := sqlmock.NewRows([]string{"id", "hostel_id", "hostel_name", "type", "severity", "status", "message", "created_at", "resolved_at"}).
		AddRow("a1", "h1", "Ganga", "Analysis: Water", "High", "Open", "CRITICAL: Ganga", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.status = $1 ORDER BY a.created_at DESC")).
		WithArgs("Open").
		WillReturnRows(rows)

	alerts, err := repo.List(context.Background(), models.AlertFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
