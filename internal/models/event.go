package models

import (
	"time"

	"github.com/lib/pq"
)

// Event is a bookable campus event.
type Event struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Date        time.Time      `db:"date" json:"date"`
	Venue       string         `db:"venue" json:"venue"`
	Price       float64        `db:"price" json:"price"`
	TotalSeats  int            `db:"total_seats" json:"total_seats"`
	BookedSeats int            `db:"booked_seats" json:"booked_seats"`
	Rules       pq.StringArray `db:"rules" json:"rules"`
	Organizer   string         `db:"organizer" json:"organizer"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// CreateEventRequest registers an event.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	Venue       string    `json:"venue" validate:"required,max=200"`
	Price       float64   `json:"price" validate:"gte=0"`
	TotalSeats  int       `json:"total_seats" validate:"required,min=1"`
	Rules       []string  `json:"rules" validate:"max=50,dive,max=300"`
	Organizer   string    `json:"organizer" validate:"required,max=200"`
}

// EventBookingStatus is the state of an event pass.
type EventBookingStatus string

const (
	EventBookingConfirmed EventBookingStatus = "Confirmed"
	EventBookingCancelled EventBookingStatus = "Cancelled"
)

// EventBooking is a confirmed seat at an event. The joined event and user
// columns are filled by listing queries.
type EventBooking struct {
	ID               string             `db:"id" json:"id"`
	EventID          string             `db:"event_id" json:"event_id"`
	UserID           string             `db:"user_id" json:"user_id"`
	PaymentID        string             `db:"payment_id" json:"payment_id"`
	Status           EventBookingStatus `db:"status" json:"status"`
	PassCode         string             `db:"pass_code" json:"pass_code"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	EventTitle       *string            `db:"event_title" json:"event_title,omitempty"`
	EventDate        *time.Time         `db:"event_date" json:"event_date,omitempty"`
	EventVenue       *string            `db:"event_venue" json:"event_venue,omitempty"`
	UserName         *string            `db:"user_name" json:"user_name,omitempty"`
	UserEmail        *string            `db:"user_email" json:"user_email,omitempty"`
	EnrollmentNumber *string            `db:"enrollment_number" json:"enrollment_number,omitempty"`
}

// BookEventRequest books a seat at an event.
type BookEventRequest struct {
	EventID   string `json:"event_id" validate:"required,uuid"`
	PaymentID string `json:"payment_id" validate:"required,max=200"`
}
