package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

// Kitchen safety rules.
const (
	maxSafeHoldTime  = 4 * time.Hour
	wastageThreshold = 0.2
	foodLogLimit     = 200

	alertFoodSafety       = "Food Safety Violation"
	alertFoodWastage      = "High Food Wastage"
	alertUnsafeDonation   = "Unauthorized Donation Attempt"
	defaultFoodItemUnitKg = "kg"
)

type foodRepository interface {
	Create(ctx context.Context, log *models.FoodLog) error
	FindByID(ctx context.Context, id string) (*models.FoodLog, error)
	List(ctx context.Context, limit int) ([]models.FoodLog, error)
	SetAction(ctx context.Context, id string, action models.FoodAction) error
}

// FoodAssessment is the outcome of the kitchen rules for one meal service.
type FoodAssessment struct {
	Leftover     float64
	WastePercent float64
	HoldTime     time.Duration
	Safety       models.SafetyStatus
	Wasteful     bool
}

// AssessFood applies the kitchen rules. Food stored more than four hours after
// cooking is Unsafe; leftovers above a fifth of what was prepared are wasteful.
func AssessFood(prepared, served float64, cookedAt, storedAt time.Time) (FoodAssessment, error) {
	if prepared <= 0 {
		return FoodAssessment{}, fmt.Errorf("prepared quantity must be positive")
	}
	if served > prepared {
		return FoodAssessment{}, fmt.Errorf("served cannot exceed prepared")
	}
	if storedAt.Before(cookedAt) {
		return FoodAssessment{}, fmt.Errorf("stored time cannot precede cooked time")
	}
	leftover := prepared - served
	a := FoodAssessment{
		Leftover:     leftover,
		WastePercent: leftover / prepared * 100,
		HoldTime:     storedAt.Sub(cookedAt),
		Safety:       models.FoodSafe,
		Wasteful:     leftover > prepared*wastageThreshold,
	}
	if a.HoldTime > maxSafeHoldTime {
		a.Safety = models.FoodUnsafe
	}
	return a, nil
}

// FoodService records kitchen food logs and enforces the donation rule.
type FoodService struct {
	repo      foodRepository
	hostels   hostelFinder
	alerts    alertRaiser
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewFoodService constructs the service.
func NewFoodService(repo foodRepository, hostels hostelFinder, alerts alertRaiser, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *FoodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FoodService{repo: repo, hostels: hostels, alerts: alerts, validator: validate, logger: logger, loc: loc, now: time.Now}
}

// Submit stores a food log, raising a High alert for unsafe storage and a
// Medium alert for excessive leftovers.
func (s *FoodService) Submit(ctx context.Context, actor models.Actor, req models.CreateFoodLogRequest) (*models.FoodLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid food log")
	}
	assessment, err := AssessFood(req.Prepared, req.Served, req.CookedAt, req.StoredAt)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, capitalise(err.Error()))
	}

	hostel, err := s.hostels.FindHostel(ctx, req.HostelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown hostel %s", req.HostelID))
		}
		return nil, appErrors.Internal(err, "failed to load hostel")
	}

	date := CampusDay(s.now(), s.loc)
	if req.Date != "" {
		if date, err = time.ParseInLocation("2006-01-02", req.Date, s.loc); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
	}

	items := make(models.FoodItems, 0, len(req.Items))
	for _, item := range req.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Unit == "" {
			item.Unit = defaultFoodItemUnitKg
		}
		items = append(items, item)
	}

	log := &models.FoodLog{
		HostelID:     hostel.ID,
		HostelName:   hostel.Name,
		Date:         date,
		MealType:     req.MealType,
		Items:        items,
		Prepared:     req.Prepared,
		Served:       req.Served,
		Leftover:     assessment.Leftover,
		CookedAt:     req.CookedAt.UTC(),
		StoredAt:     req.StoredAt.UTC(),
		SafetyStatus: assessment.Safety,
		Edibility:    req.Edibility,
		Action:       models.FoodPending,
		LoggedBy:     optionalID(actor.ID),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, appErrors.Internal(err, "failed to save food log")
	}

	if assessment.Safety == models.FoodUnsafe {
		s.raise(ctx, hostel.ID, alertFoodSafety, models.SeverityHigh,
			fmt.Sprintf("SPOILAGE RISK: %s food was stored after %.1f hours. Max allowed is %d hours.",
				req.MealType, assessment.HoldTime.Hours(), int(maxSafeHoldTime.Hours())))
	}
	if assessment.Wasteful {
		s.raise(ctx, hostel.ID, alertFoodWastage, models.SeverityMedium,
			fmt.Sprintf("ANOMALY: %s had %.1f%% wastage (%skg).", req.MealType, assessment.WastePercent, formatQuantity(assessment.Leftover)))
	}
	return log, nil
}

// List returns recent food logs, newest first.
func (s *FoodService) List(ctx context.Context) ([]models.FoodLog, error) {
	logs, err := s.repo.List(ctx, foodLogLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list food logs")
	}
	return logs, nil
}

// UpdateAction records what was done with the leftovers. Donating Unsafe or
// Non-Edible food is refused and raises a High alert.
func (s *FoodService) UpdateAction(ctx context.Context, actor models.Actor, id string, req models.FoodActionRequest) (*models.FoodLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "action must be Donated, Composted or Discarded")
	}
	log, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Log not found")
		}
		return nil, appErrors.Internal(err, "failed to load food log")
	}

	if req.Action == models.FoodDonated && !log.Donatable() {
		name := actor.Name
		if name == "" {
			name = actor.ID
		}
		s.raise(ctx, log.HostelID, alertUnsafeDonation, models.SeverityHigh,
			fmt.Sprintf("SECURITY: User %s tried to donate UNSAFE/NON-EDIBLE food (%s). Action Blocked.", name, log.MealType))
		return nil, appErrors.Clone(appErrors.ErrUnsafeDonation, "")
	}

	if err := s.repo.SetAction(ctx, id, req.Action); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Log not found")
		}
		return nil, appErrors.Internal(err, "failed to update food log")
	}
	log.Action = req.Action
	return log, nil
}

func (s *FoodService) raise(ctx context.Context, hostelID, kind string, severity models.Severity, message string) {
	alert := &models.Alert{HostelID: &hostelID, Type: kind, Severity: severity, Message: message}
	if err := s.alerts.Raise(ctx, alert); err != nil {
		s.logger.Warn("failed to raise food alert", zap.String("hostel_id", hostelID), zap.String("type", kind), zap.Error(err))
	}
}

func capitalise(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
