package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

const bookingSelect = `SELECT b.id, b.user_id, b.library_id, l.name AS library_name, b.status, b.start_time, b.end_time, b.created_at, b.updated_at
FROM library_bookings b
LEFT JOIN libraries l ON l.id = b.library_id`

// LibraryRepository persists libraries and seat bookings. Every seat change
// runs in the same transaction as the booking row it belongs to.
type LibraryRepository struct {
	db *sqlx.DB
}

// NewLibraryRepository constructs the repository.
func NewLibraryRepository(db *sqlx.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// List returns every library ordered by name.
func (r *LibraryRepository) List(ctx context.Context) ([]models.Library, error) {
	const query = `SELECT id, name, total_seats, booked_seats, created_at, updated_at FROM libraries ORDER BY name ASC`
	libraries := make([]models.Library, 0)
	if err := r.db.SelectContext(ctx, &libraries, query); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	return libraries, nil
}

// FindByID returns one library.
func (r *LibraryRepository) FindByID(ctx context.Context, id string) (*models.Library, error) {
	const query = `SELECT id, name, total_seats, booked_seats, created_at, updated_at FROM libraries WHERE id = $1`
	var library models.Library
	if err := r.db.GetContext(ctx, &library, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get library: %w", err)
	}
	return &library, nil
}

// Create inserts a library. A duplicate name returns ErrDuplicate.
func (r *LibraryRepository) Create(ctx context.Context, library *models.Library) error {
	if library.ID == "" {
		library.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	library.CreatedAt = now
	library.UpdatedAt = now

	const query = `INSERT INTO libraries (id, name, total_seats, booked_seats, created_at, updated_at)
VALUES (:id, :name, :total_seats, :booked_seats, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, library); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create library: %w", ErrDuplicate)
		}
		return fmt.Errorf("create library: %w", err)
	}
	return nil
}

// Delete cancels the library's active bookings and removes it. It returns
// the number of bookings cancelled.
func (r *LibraryRepository) Delete(ctx context.Context, id string, now time.Time) (cancelled int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete library transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const cancelQuery = `UPDATE library_bookings SET status = 'Cancelled', end_time = $2, updated_at = $2 WHERE library_id = $1 AND status = 'Active'`
	res, err := tx.ExecContext(ctx, cancelQuery, id, now)
	if err != nil {
		return 0, fmt.Errorf("cancel library bookings: %w", err)
	}
	if cancelled, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("cancel library bookings rows: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM libraries WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete library: %w", err)
	}
	if err = expectOne(res); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete library: %w", err)
	}
	return cancelled, nil
}

// ActiveBooking returns the user's Active booking.
func (r *LibraryRepository) ActiveBooking(ctx context.Context, userID string) (*models.LibraryBooking, error) {
	var booking models.LibraryBooking
	if err := r.db.GetContext(ctx, &booking, bookingSelect+` WHERE b.user_id = $1 AND b.status = 'Active' LIMIT 1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get active booking: %w", err)
	}
	return &booking, nil
}

// Book takes a seat and records an Active booking in one transaction.
// A full library returns ErrCapacityReached, an existing Active booking
// ErrDuplicate and an unknown library sql.ErrNoRows. Failures leave the seat
// count untouched.
func (r *LibraryRepository) Book(ctx context.Context, booking *models.LibraryBooking) (err error) {
	if booking.LibraryID == nil {
		return sql.ErrNoRows
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = models.BookingActive
	booking.CreatedAt = booking.StartTime
	booking.UpdatedAt = booking.StartTime

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var name string
	const seatQuery = `UPDATE libraries SET booked_seats = booked_seats + 1, updated_at = $2 WHERE id = $1 AND booked_seats < total_seats RETURNING name`
	if err = tx.GetContext(ctx, &name, seatQuery, *booking.LibraryID, booking.StartTime); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("reserve seat: %w", err)
		}
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM libraries WHERE id = $1)`, *booking.LibraryID); err != nil {
			return fmt.Errorf("check library: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrCapacityReached
	}

	const insertQuery = `INSERT INTO library_bookings (id, user_id, library_id, status, start_time, end_time, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertQuery, booking.ID, booking.UserID, *booking.LibraryID, booking.Status, booking.StartTime, booking.EndTime, booking.CreatedAt, booking.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	booking.LibraryName = &name
	return nil
}

// Cancel moves the user's Active booking to Cancelled and frees its seat.
// No Active booking returns sql.ErrNoRows.
func (r *LibraryRepository) Cancel(ctx context.Context, userID string, now time.Time) (*models.LibraryBooking, error) {
	const query = `UPDATE library_bookings SET status = 'Cancelled', end_time = $2, updated_at = $2 WHERE user_id = $1 AND status = 'Active'
RETURNING id, user_id, library_id, status, start_time, end_time, created_at, updated_at`
	return r.closeBooking(ctx, "cancel booking", query, userID, now)
}

// Expire completes one Active booking and frees its seat. A booking already
// closed by another path returns sql.ErrNoRows and leaves seats alone.
func (r *LibraryRepository) Expire(ctx context.Context, bookingID string, now time.Time) (*models.LibraryBooking, error) {
	const query = `UPDATE library_bookings SET status = 'Completed', updated_at = $2 WHERE id = $1 AND status = 'Active'
RETURNING id, user_id, library_id, status, start_time, end_time, created_at, updated_at`
	return r.closeBooking(ctx, "expire booking", query, bookingID, now)
}

func (r *LibraryRepository) closeBooking(ctx context.Context, op, query, key string, now time.Time) (booking *models.LibraryBooking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var closed models.LibraryBooking
	if err = tx.GetContext(ctx, &closed, query, key, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if closed.LibraryID != nil {
		const seatQuery = `UPDATE libraries SET booked_seats = GREATEST(booked_seats - 1, 0), updated_at = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, seatQuery, *closed.LibraryID, now); err != nil {
			return nil, fmt.Errorf("release seat: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", op, err)
	}
	return &closed, nil
}

// ListExpired returns Active bookings whose end time is at or before now.
func (r *LibraryRepository) ListExpired(ctx context.Context, now time.Time) ([]models.LibraryBooking, error) {
	bookings := make([]models.LibraryBooking, 0)
	if err := r.db.SelectContext(ctx, &bookings, bookingSelect+` WHERE b.status = 'Active' AND b.end_time <= $1 ORDER BY b.end_time ASC`, now); err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	return bookings, nil
}
