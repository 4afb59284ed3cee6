package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/jobs"
	"github.com/noah-isme/campus-ops-api/pkg/mailer"
)

const eventID = "3e4f5a6b-7c8d-4e9f-a0b1-c2d3e4f5a6b7"

type memoryEventRepo struct {
	mu       sync.Mutex
	events   map[string]*models.Event
	bookings []models.EventBooking
}

func newMemoryEventRepo(events ...models.Event) *memoryEventRepo {
	m := &memoryEventRepo{events: map[string]*models.Event{}}
	for i := range events {
		e := events[i]
		m.events[e.ID] = &e
	}
	return m
}

func (m *memoryEventRepo) List(context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memoryEventRepo) FindByID(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (m *memoryEventRepo) Create(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = "event-" + event.Title
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *memoryEventRepo) Book(_ context.Context, booking *models.EventBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[booking.EventID]
	if !ok {
		return sql.ErrNoRows
	}
	if e.BookedSeats >= e.TotalSeats {
		return repository.ErrCapacityReached
	}
	for _, b := range m.bookings {
		if b.UserID == booking.UserID && b.EventID == booking.EventID && b.Status == models.EventBookingConfirmed {
			return repository.ErrDuplicate
		}
	}
	e.BookedSeats++
	booking.ID = "booking-" + booking.UserID
	booking.Status = models.EventBookingConfirmed
	m.bookings = append(m.bookings, *booking)
	return nil
}

func (m *memoryEventRepo) ListByUser(_ context.Context, userID string) ([]models.EventBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventBooking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryEventRepo) Attendees(_ context.Context, id string) ([]models.EventBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventBooking
	for _, b := range m.bookings {
		if b.EventID == id {
			out = append(out, b)
		}
	}
	return out, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newEventFixture(seats int) (*memoryEventRepo, *recordingQueue, *EventService) {
	repo := newMemoryEventRepo(models.Event{
		ID: eventID, Title: "Tech Fest", Venue: "Main Auditorium", TotalSeats: seats, Price: 150,
		Date: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	})
	users := staticUsers{
		"user-1": {ID: "user-1", Name: "Asha", Email: "asha@campus.local"},
		"user-2": {ID: "user-2", Name: "Ravi", Email: "ravi@campus.local"},
	}
	queue := &recordingQueue{}
	svc := NewEventService(repo, users, queue, nil, nil)
	svc.now = func() time.Time { return time.UnixMilli(1710064800000) }
	return repo, queue, svc
}

func TestEventBookIssuesPassAndQueuesEmail(t *testing.T) {
	_, queue, svc := newEventFixture(10)

	booking, err := svc.Book(context.Background(), "user-1", models.BookEventRequest{EventID: eventID, PaymentID: "pay_123"})
	require.NoError(t, err)
	assert.Equal(t, "PASS-user-1-"+eventID+"-1710064800000", booking.PassCode)
	assert.Equal(t, models.EventBookingConfirmed, booking.Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeEventConfirmation, queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(EventConfirmation)
	require.True(t, ok)
	assert.Equal(t, "asha@campus.local", payload.To)
	assert.Equal(t, "Tech Fest", payload.Title)
	assert.Equal(t, booking.PassCode, payload.PassCode)
}

func TestEventBookRejectsDuplicateAndFull(t *testing.T) {
	repo, _, svc := newEventFixture(1)
	req := models.BookEventRequest{EventID: eventID, PaymentID: "pay_1"}

	_, err := svc.Book(context.Background(), "user-1", req)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEventFull))

	repo.events[eventID].TotalSeats = 5
	_, err = svc.Book(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEventAlreadyBooked))
	assert.Contains(t, err.Error(), "You have already booked this event")
	assert.Equal(t, 1, repo.events[eventID].BookedSeats)
}

func TestEventBookUnknownEvent(t *testing.T) {
	_, _, svc := newEventFixture(1)

	_, err := svc.Book(context.Background(), "user-1", models.BookEventRequest{EventID: "5f6a7b8c-9d0e-4f1a-b2c3-d4e5f6a7b8c9", PaymentID: "p"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Book(context.Background(), "user-1", models.BookEventRequest{EventID: "not-a-uuid", PaymentID: "p"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEventBookSurvivesQueueFailure(t *testing.T) {
	_, queue, svc := newEventFixture(3)
	queue.err = jobs.ErrQueueClosed

	booking, err := svc.Book(context.Background(), "user-2", models.BookEventRequest{EventID: eventID, PaymentID: "pay"})
	require.NoError(t, err)
	assert.NotEmpty(t, booking.PassCode)
}

func TestEventCreateTrimsRules(t *testing.T) {
	_, _, svc := newEventFixture(1)

	event, err := svc.Create(context.Background(), models.CreateEventRequest{
		Title: " Hackathon ", Description: "24h build", Date: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Venue: "Lab 3", TotalSeats: 40, Organizer: "CSE Society", Rules: []string{" Bring ID ", "", "No outside food"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hackathon", event.Title)
	assert.Equal(t, []string{"Bring ID", "No outside food"}, []string(event.Rules))

	_, err = svc.Create(context.Background(), models.CreateEventRequest{Title: "x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEventAttendees(t *testing.T) {
	_, _, svc := newEventFixture(5)
	for _, u := range []string{"user-1", "user-2"} {
		_, err := svc.Book(context.Background(), u, models.BookEventRequest{EventID: eventID, PaymentID: "p-" + u})
		require.NoError(t, err)
	}

	attendees, err := svc.Attendees(context.Background(), eventID)
	require.NoError(t, err)
	assert.Len(t, attendees, 2)

	mine, err := svc.MyBookings(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Attendees(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestConfirmationMailHandler(t *testing.T) {
	sender := &recordingSender{}
	handler := ConfirmationMailHandler(sender, time.UTC)

	err := handler(context.Background(), jobs.Job{Type: JobTypeEventConfirmation, Payload: EventConfirmation{
		To: "asha@campus.local", Name: "Asha <3", Title: "Tech Fest", Venue: "Main Auditorium",
		Date: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), PassCode: "PASS-1",
	}})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Ticket Confirmed: Tech Fest", msg.Subject)
	assert.Contains(t, msg.HTML, "PASS-1")
	assert.Contains(t, msg.HTML, "Asha &lt;3")
	assert.Contains(t, msg.HTML, "Free")
	assert.True(t, strings.Contains(msg.Text, "Pass code: PASS-1"))

	sender.err = errors.New("smtp down")
	err = handler(context.Background(), jobs.Job{Payload: EventConfirmation{To: "x@y.z"}})
	assert.Error(t, err)

	err = handler(context.Background(), jobs.Job{Payload: "bad"})
	assert.Error(t, err)
}
