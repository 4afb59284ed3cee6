package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const (
	eventLibraryUpdated = "library.updated"

	bookingOutcomeBooked    = "booked"
	bookingOutcomeFull      = "full"
	bookingOutcomeDuplicate = "duplicate"
	bookingOutcomeCancelled = "cancelled"
)

type libraryRepository interface {
	List(ctx context.Context) ([]models.Library, error)
	FindByID(ctx context.Context, id string) (*models.Library, error)
	Create(ctx context.Context, library *models.Library) error
	Delete(ctx context.Context, id string, now time.Time) (int64, error)
	ActiveBooking(ctx context.Context, userID string) (*models.LibraryBooking, error)
	Book(ctx context.Context, booking *models.LibraryBooking) error
	Cancel(ctx context.Context, userID string, now time.Time) (*models.LibraryBooking, error)
	Expire(ctx context.Context, bookingID string, now time.Time) (*models.LibraryBooking, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.LibraryBooking, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Publisher pushes realtime notifications to a room.
type Publisher interface {
	Publish(room, msgType string, payload interface{}) int
}

// LibraryConfig tunes seat booking.
type LibraryConfig struct {
	SweepInterval   time.Duration
	DefaultDuration time.Duration
	MaxDuration     time.Duration
	CacheTTL        time.Duration
}

// LibraryService books study seats and expires finished bookings.
type LibraryService struct {
	repo      libraryRepository
	audit     auditRecorder
	cache     *CacheService
	publisher Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       LibraryConfig
	now       func() time.Time
}

// NewLibraryService constructs the service. cache and publisher may be nil.
func NewLibraryService(repo libraryRepository, audit auditRecorder, cache *CacheService, publisher Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg LibraryConfig) *LibraryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 2 * time.Hour
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 12 * time.Hour
	}
	return &LibraryService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// List returns every library with its seat counts.
func (s *LibraryService) List(ctx context.Context) ([]models.Library, error) {
	libraries, err := cached(ctx, s.cache, cacheKeyLibraries, s.cfg.CacheTTL, s.repo.List)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list libraries")
	}
	return libraries, nil
}

// Create registers a library.
func (s *LibraryService) Create(ctx context.Context, adminID string, req models.CreateLibraryRequest) (*models.Library, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid library payload")
	}

	library := &models.Library{Name: req.Name, TotalSeats: req.TotalSeats}
	if err := s.repo.Create(ctx, library); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Library already exists")
		}
		return nil, appErrors.Internal(err, "failed to create library")
	}

	s.recordAudit(ctx, adminID, library.ID, map[string]interface{}{"op": "create", "name": library.Name, "total_seats": library.TotalSeats})
	s.seatsChanged(ctx, library.ID, "created")
	return library, nil
}

// Delete removes a library and cancels its active bookings.
func (s *LibraryService) Delete(ctx context.Context, adminID, id string) error {
	cancelled, err := s.repo.Delete(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Library not found")
		}
		return appErrors.Internal(err, "failed to delete library")
	}

	s.logger.Info("library deleted", zap.String("library_id", id), zap.Int64("cancelled_bookings", cancelled))
	s.recordAudit(ctx, adminID, id, map[string]interface{}{"op": "delete", "cancelled_bookings": cancelled})
	s.seatsChanged(ctx, id, "deleted")
	return nil
}

// MyBooking returns the user's Active booking, or nil when there is none.
func (s *LibraryService) MyBooking(ctx context.Context, userID string) (*models.LibraryBooking, error) {
	booking, err := s.repo.ActiveBooking(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load booking")
	}
	return booking, nil
}

// Book reserves a seat for the user.
func (s *LibraryService) Book(ctx context.Context, userID string, req models.BookSlotRequest) (*models.LibraryBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request")
	}
	duration := s.cfg.DefaultDuration
	if req.DurationHours > 0 {
		duration = time.Duration(req.DurationHours) * time.Hour
	}
	if duration > s.cfg.MaxDuration {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking duration exceeds the maximum")
	}

	existing, err := s.MyBooking(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.LibraryBooking(bookingOutcomeDuplicate)
		return nil, appErrors.Clone(appErrors.ErrActiveBookingExists, "")
	}

	start := s.now().UTC()
	libraryID := req.LibraryID
	booking := &models.LibraryBooking{
		UserID:    userID,
		LibraryID: &libraryID,
		Status:    models.BookingActive,
		StartTime: start,
		EndTime:   start.Add(duration),
	}
	if err := s.repo.Book(ctx, booking); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Library not found")
		case errors.Is(err, repository.ErrCapacityReached):
			s.metrics.LibraryBooking(bookingOutcomeFull)
			return nil, appErrors.Clone(appErrors.ErrLibraryFull, "Library is full")
		case errors.Is(err, repository.ErrDuplicate):
			s.metrics.LibraryBooking(bookingOutcomeDuplicate)
			return nil, appErrors.Clone(appErrors.ErrActiveBookingExists, "")
		}
		return nil, appErrors.Internal(err, "failed to book slot")
	}

	s.metrics.LibraryBooking(bookingOutcomeBooked)
	s.seatsChanged(ctx, libraryID, "booked")
	return booking, nil
}

// Cancel ends the user's Active booking and frees the seat.
func (s *LibraryService) Cancel(ctx context.Context, userID string) (*models.LibraryBooking, error) {
	booking, err := s.repo.Cancel(ctx, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No active booking found")
		}
		return nil, appErrors.Internal(err, "failed to cancel booking")
	}

	s.metrics.LibraryBooking(bookingOutcomeCancelled)
	if booking.LibraryID != nil {
		s.seatsChanged(ctx, *booking.LibraryID, "cancelled")
	}
	return booking, nil
}

// Sweep completes every Active booking whose end time has passed. A booking
// moved by a concurrent cancel is skipped. Running it twice is harmless.
func (s *LibraryService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	started := time.Now()
	now := s.now().UTC()
	due, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list expired bookings")
	}

	result := &models.SweepResult{RanAt: now}
	for _, booking := range due {
		if _, err := s.repo.Expire(ctx, booking.ID, now); err != nil {
			result.Skipped++
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to expire booking", zap.String("booking_id", booking.ID), zap.Error(err))
			}
			continue
		}
		result.Expired++
	}

	s.metrics.ObserveSweep(result.Expired, time.Since(started))
	if result.Expired > 0 {
		s.logger.Info("expired library bookings", zap.Int("expired", result.Expired), zap.Int("skipped", result.Skipped))
		s.seatsChanged(ctx, "", "expired")
	}
	return result, nil
}

// Run sweeps once immediately and then on every interval until ctx ends.
func (s *LibraryService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("library sweeper started", zap.Duration("interval", s.cfg.SweepInterval))
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("library sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("library sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *LibraryService) seatsChanged(ctx context.Context, libraryID, reason string) {
	s.cache.Invalidate(ctx, cacheKeyLibraries)
	if s.publisher == nil {
		return
	}
	payload := map[string]string{"reason": reason}
	if libraryID != "" {
		payload["library_id"] = libraryID
	}
	s.publisher.Publish(string(models.RoleStudent), eventLibraryUpdated, payload)
}

func (s *LibraryService) recordAudit(ctx context.Context, adminID, libraryID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &adminID, Action: models.AuditActionLibraryAdmin, Resource: "library", ResourceID: &libraryID}
	entry.NewValues, _ = json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}
