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
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const temporaryBlock = 30 * 24 * time.Hour

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Decide(ctx context.Context, id string, role models.UserRole, approverID string, at time.Time) error
	IncrementViolations(ctx context.Context, id string) error
	Block(ctx context.Context, id, reason string, expiresAt *time.Time) error
	Unblock(ctx context.Context, id string) error
	CountByRole(ctx context.Context) ([]models.RoleCount, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// UserService handles admin user management.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &UserService{repo: repo, validator: validate, logger: logger, loc: loc, now: time.Now}
}

// Pending lists accounts awaiting approval, newest first.
func (s *UserService) Pending(ctx context.Context) ([]models.User, error) {
	role := models.RolePending
	users, err := s.repo.List(ctx, models.UserFilter{Role: &role})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending users")
	}
	return users, nil
}

// List returns users filtered by role, never including the caller.
func (s *UserService) List(ctx context.Context, callerID, role string) ([]models.User, error) {
	filter := models.UserFilter{ExcludeID: callerID}
	if role = strings.TrimSpace(role); role != "" {
		r := models.UserRole(role)
		if !r.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		filter.Role = &r
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	return users, nil
}

// Approve grants a role to a pending account.
func (s *UserService) Approve(ctx context.Context, adminID, userID string, req models.ApproveUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Role is required for approval")
	}
	return s.decide(ctx, adminID, userID, req.Role, models.AuditActionUserApprove)
}

// Reject marks a pending account as rejected.
func (s *UserService) Reject(ctx context.Context, adminID, userID string) (*models.User, error) {
	return s.decide(ctx, adminID, userID, models.RoleRejected, models.AuditActionUserReject)
}

func (s *UserService) decide(ctx context.Context, adminID, userID string, role models.UserRole, action string) (*models.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RolePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is not awaiting approval")
	}

	now := s.now().UTC()
	if err := s.repo.Decide(ctx, userID, role, adminID, now); err != nil {
		return nil, s.mapWriteErr(err, "failed to update user")
	}
	s.audit(ctx, adminID, action, userID, map[string]string{"role": string(user.Role)}, map[string]string{"role": string(role)})

	user.Role = role
	user.ApprovedBy = &adminID
	user.ApprovedAt = &now
	return user, nil
}

// ManageAccess warns, blocks or unblocks a user. Admins cannot moderate
// themselves or other admins.
func (s *UserService) ManageAccess(ctx context.Context, adminID, userID string, req models.AccessRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid action")
	}
	if adminID == userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own access")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change access of an admin")
	}

	reason := strings.TrimSpace(req.Reason)
	switch req.Action {
	case models.AccessWarn:
		err = s.repo.IncrementViolations(ctx, userID)
		user.ViolationCount++
	case models.AccessBlockTemp:
		if reason == "" {
			reason = "Temporary Suspension"
		}
		expires := s.now().UTC().Add(temporaryBlock)
		err = s.repo.Block(ctx, userID, reason, &expires)
		user.IsBlocked, user.BlockExpiresAt, user.BlockReason = true, &expires, &reason
	case models.AccessBlockPerm:
		if reason == "" {
			reason = "Permanent Ban"
		}
		err = s.repo.Block(ctx, userID, reason, nil)
		user.IsBlocked, user.BlockExpiresAt, user.BlockReason = true, nil, &reason
	case models.AccessUnblock:
		err = s.repo.Unblock(ctx, userID)
		user.IsBlocked, user.BlockExpiresAt, user.BlockReason = false, nil, nil
	}
	if err != nil {
		return nil, s.mapWriteErr(err, "failed to update user access")
	}

	s.audit(ctx, adminID, models.AuditActionUserAccess, userID, nil, map[string]string{"action": string(req.Action), "reason": reason})
	return user, nil
}

// Stats returns totals per role and the number registered today.
func (s *UserService) Stats(ctx context.Context) (*models.UserStats, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count users")
	}
	newToday, err := s.repo.CountCreatedSince(ctx, CampusDay(s.now(), s.loc))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count new users")
	}

	stats := &models.UserStats{ByRole: make(map[models.UserRole]int, len(counts)), NewToday: newToday}
	for _, c := range counts {
		stats.ByRole[c.Role] = c.Count
		stats.Total += c.Count
	}
	return stats, nil
}

// AuditTrail returns a user's recent audit entries.
func (s *UserService) AuditTrail(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListAuditLogs(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list audit logs")
	}
	return logs, nil
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) mapWriteErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return appErrors.Internal(err, message)
}

func (s *UserService) audit(ctx context.Context, adminID, action, userID string, oldValues, newValues interface{}) {
	entry := &models.AuditLog{UserID: &adminID, Action: action, Resource: "user", ResourceID: &userID}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
