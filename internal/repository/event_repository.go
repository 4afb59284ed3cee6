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

const eventColumns = `id, title, description, date, venue, price, total_seats, booked_seats, rules, organizer, created_at`

// EventRepository persists events and their bookings.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events ordered by date.
func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	if err := r.db.SelectContext(ctx, &events, `SELECT `+eventColumns+` FROM events ORDER BY date ASC`); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// FindByID returns one event.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Rules == nil {
		event.Rules = []string{}
	}
	event.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO events (id, title, description, date, venue, price, total_seats, booked_seats, rules, organizer, created_at)
VALUES (:id, :title, :description, :date, :venue, :price, :total_seats, :booked_seats, :rules, :organizer, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Book takes a seat and stores a Confirmed booking in one transaction. A full
// event returns ErrCapacityReached, a second booking by the same user
// ErrDuplicate and an unknown event sql.ErrNoRows.
func (r *EventRepository) Book(ctx context.Context, booking *models.EventBooking) (err error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = models.EventBookingConfirmed
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seat struct {
		Title string    `db:"title"`
		Date  time.Time `db:"date"`
		Venue string    `db:"venue"`
	}
	const seatQuery = `UPDATE events SET booked_seats = booked_seats + 1 WHERE id = $1 AND booked_seats < total_seats RETURNING title, date, venue`
	if err = tx.GetContext(ctx, &seat, seatQuery, booking.EventID); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("reserve event seat: %w", err)
		}
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, booking.EventID); err != nil {
			return fmt.Errorf("check event: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrCapacityReached
	}

	const insertQuery = `INSERT INTO event_bookings (id, event_id, user_id, payment_id, status, pass_code, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery, booking.ID, booking.EventID, booking.UserID, booking.PaymentID, booking.Status, booking.PassCode, booking.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert event booking: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event booking: %w", err)
	}

	booking.EventTitle = &seat.Title
	booking.EventDate = &seat.Date
	booking.EventVenue = &seat.Venue
	return nil
}

// ListByUser returns the user's bookings with event details, newest first.
func (r *EventRepository) ListByUser(ctx context.Context, userID string) ([]models.EventBooking, error) {
	const query = `SELECT b.id, b.event_id, b.user_id, b.payment_id, b.status, b.pass_code, b.created_at,
	e.title AS event_title, e.date AS event_date, e.venue AS event_venue
FROM event_bookings b
JOIN events e ON e.id = b.event_id
WHERE b.user_id = $1
ORDER BY b.created_at DESC`
	bookings := make([]models.EventBooking, 0)
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("list user event bookings: %w", err)
	}
	return bookings, nil
}

// Attendees returns the confirmed bookings of an event with attendee details.
func (r *EventRepository) Attendees(ctx context.Context, eventID string) ([]models.EventBooking, error) {
	const query = `SELECT b.id, b.event_id, b.user_id, b.payment_id, b.status, b.pass_code, b.created_at,
	u.name AS user_name, u.email AS user_email, u.enrollment_number
FROM event_bookings b
JOIN users u ON u.id = b.user_id
WHERE b.event_id = $1 AND b.status = 'Confirmed'
ORDER BY b.created_at ASC`
	bookings := make([]models.EventBooking, 0)
	if err := r.db.SelectContext(ctx, &bookings, query, eventID); err != nil {
		return nil, fmt.Errorf("list event attendees: %w", err)
	}
	return bookings, nil
}
