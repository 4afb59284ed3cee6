package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/jobs"
)

// JobTypeEventConfirmation is the queue job that mails an event pass.
const JobTypeEventConfirmation = "event.confirmation"

type eventRepository interface {
	List(ctx context.Context) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Book(ctx context.Context, booking *models.EventBooking) error
	ListByUser(ctx context.Context, userID string) ([]models.EventBooking, error)
	Attendees(ctx context.Context, eventID string) ([]models.EventBooking, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// EventConfirmation is the payload of a confirmation mail job.
type EventConfirmation struct {
	To       string
	Name     string
	Title    string
	Date     time.Time
	Venue    string
	Price    float64
	PassCode string
}

// EventService manages campus events and pass bookings.
type EventService struct {
	repo      eventRepository
	users     userLookup
	mail      jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs the service. A nil mail queue skips
// confirmation emails.
func NewEventService(repo eventRepository, users userLookup, mail jobEnqueuer, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, users: users, mail: mail, validator: validate, logger: logger, now: time.Now}
}

// List returns events ordered by date.
func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list events")
	}
	return events, nil
}

// Create registers an event.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Venue = strings.TrimSpace(req.Venue)
	req.Organizer = strings.TrimSpace(req.Organizer)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	rules := make([]string, 0, len(req.Rules))
	for _, rule := range req.Rules {
		if rule = strings.TrimSpace(rule); rule != "" {
			rules = append(rules, rule)
		}
	}
	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date.UTC(),
		Venue:       req.Venue,
		Price:       req.Price,
		TotalSeats:  req.TotalSeats,
		Rules:       rules,
		Organizer:   req.Organizer,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Internal(err, "failed to create event")
	}
	return event, nil
}

// Book reserves a seat and issues a pass code. The confirmation email is
// queued and never fails the booking.
func (s *EventService) Book(ctx context.Context, userID string, req models.BookEventRequest) (*models.EventBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "event_id and payment_id are required")
	}

	booking := &models.EventBooking{
		EventID:   req.EventID,
		UserID:    userID,
		PaymentID: req.PaymentID,
		PassCode:  fmt.Sprintf("PASS-%s-%s-%d", userID, req.EventID, s.now().UnixMilli()),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Book(ctx, booking); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Event not found")
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, appErrors.Clone(appErrors.ErrEventFull, "Event fully booked")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrEventAlreadyBooked, "You have already booked this event")
		}
		return nil, appErrors.Internal(err, "failed to book event")
	}

	s.queueConfirmation(ctx, booking)
	return booking, nil
}

func (s *EventService) queueConfirmation(ctx context.Context, booking *models.EventBooking) {
	if s.mail == nil {
		return
	}
	user, err := s.users.FindByID(ctx, booking.UserID)
	if err != nil {
		s.logger.Warn("confirmation email skipped", zap.String("booking_id", booking.ID), zap.Error(err))
		return
	}
	event, err := s.repo.FindByID(ctx, booking.EventID)
	if err != nil {
		s.logger.Warn("confirmation email skipped", zap.String("booking_id", booking.ID), zap.Error(err))
		return
	}

	payload := EventConfirmation{
		To:       user.Email,
		Name:     user.Name,
		Title:    event.Title,
		Date:     event.Date,
		Venue:    event.Venue,
		Price:    event.Price,
		PassCode: booking.PassCode,
	}
	if err := s.mail.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeEventConfirmation, Payload: payload}); err != nil {
		s.logger.Warn("failed to queue confirmation email", zap.String("booking_id", booking.ID), zap.Error(err))
	}
}

// MyBookings returns the caller's passes with event details.
func (s *EventService) MyBookings(ctx context.Context, userID string) ([]models.EventBooking, error) {
	bookings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list bookings")
	}
	return bookings, nil
}

// Attendees lists confirmed bookings for an event.
func (s *EventService) Attendees(ctx context.Context, eventID string) ([]models.EventBooking, error) {
	if _, err := s.repo.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Event not found")
		}
		return nil, appErrors.Internal(err, "failed to load event")
	}
	attendees, err := s.repo.Attendees(ctx, eventID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendees")
	}
	return attendees, nil
}
