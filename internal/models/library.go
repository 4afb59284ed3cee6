package models

import "time"

// Library is a study space with a fixed number of seats.
type Library struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	TotalSeats  int       `db:"total_seats" json:"total_seats"`
	BookedSeats int       `db:"booked_seats" json:"booked_seats"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableSeats returns the free seat count.
func (l Library) AvailableSeats() int {
	if free := l.TotalSeats - l.BookedSeats; free > 0 {
		return free
	}
	return 0
}

// BookingStatus is the lifecycle state of a library booking.
type BookingStatus string

const (
	BookingActive    BookingStatus = "Active"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

// LibraryBooking is a seat reservation. LibraryID is nil once the library has
// been deleted.
type LibraryBooking struct {
	ID          string        `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"user_id"`
	LibraryID   *string       `db:"library_id" json:"library_id,omitempty"`
	LibraryName *string       `db:"library_name" json:"library_name,omitempty"`
	Status      BookingStatus `db:"status" json:"status"`
	StartTime   time.Time     `db:"start_time" json:"start_time"`
	EndTime     time.Time     `db:"end_time" json:"end_time"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// CreateLibraryRequest registers a new library.
type CreateLibraryRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=120"`
	TotalSeats int    `json:"total_seats" validate:"required,min=1,max=10000"`
}

// BookSlotRequest reserves a seat. DurationHours defaults when zero.
type BookSlotRequest struct {
	LibraryID     string `json:"library_id" validate:"required,uuid"`
	DurationHours int    `json:"duration_hours" validate:"omitempty,min=1,max=12"`
}

// SweepResult reports one expiry sweep.
type SweepResult struct {
	Expired int       `json:"expired"`
	Skipped int       `json:"skipped"`
	RanAt   time.Time `json:"ran_at"`
}
