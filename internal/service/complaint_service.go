package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/storage"
)

const (
	assignOutcomeEmployee = "employee"
	assignOutcomeFallback = "fallback"
	assignOutcomeSkipped  = "skipped"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	CountPendingByCategory(ctx context.Context, category models.ComplaintCategory) (int, error)
	EmployeeLoads(ctx context.Context, excludeID string) ([]models.EmployeeLoad, error)
	Assign(ctx context.Context, id, assigneeID string, target *models.TargetRole, msg *models.ComplaintMessage) error
	Escalate(ctx context.Context, id string, msg *models.ComplaintMessage) error
	ApplyPatch(ctx context.Context, id string, from models.ComplaintStatus, patch models.ComplaintPatch) error
	Messages(ctx context.Context, complaintID string) ([]models.ComplaintMessage, error)
	AddMessage(ctx context.Context, msg *models.ComplaintMessage) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type badgeAwarder interface {
	AwardBadges(ctx context.Context, studentID string) ([]string, error)
}

// ComplaintConfig tunes the complaint workflow.
type ComplaintConfig struct {
	AutoAssignThreshold int
	MaxEmployeeLoad     int
	EscalationDwell     time.Duration
	StrictTransitions   bool
	FallbackAssigneeID  string
	ImageURLTTL         time.Duration
}

// ComplaintService runs the complaint lifecycle: creation with load-balanced
// assignment, status transitions, escalation and the message log.
type ComplaintService struct {
	repo      complaintRepository
	users     userLookup
	streaks   streakToucher
	badges    badgeAwarder
	images    storage.ObjectStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ComplaintConfig
	now       func() time.Time
}

// NewComplaintService constructs the service. images may be nil to disable
// attachments.
func NewComplaintService(repo complaintRepository, users userLookup, streaks streakToucher, badges badgeAwarder, images storage.ObjectStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ComplaintConfig) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutoAssignThreshold <= 0 {
		cfg.AutoAssignThreshold = 5
	}
	if cfg.MaxEmployeeLoad <= 0 {
		cfg.MaxEmployeeLoad = 10
	}
	if cfg.EscalationDwell <= 0 {
		cfg.EscalationDwell = 2 * time.Minute
	}
	if cfg.ImageURLTTL <= 0 {
		cfg.ImageURLTTL = time.Hour
	}
	return &ComplaintService{
		repo:      repo,
		users:     users,
		streaks:   streaks,
		badges:    badges,
		images:    images,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create files a complaint for the student, auto-assigning it when its
// category is congested.
func (s *ComplaintService) Create(ctx context.Context, student models.Actor, req models.CreateComplaintRequest, image *models.Upload) (*models.Complaint, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	target, ok := models.ParseTargetRole(req.TargetRole)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_role must be staff or Admin")
	}

	complaint := &models.Complaint{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		StudentName: student.Name,
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ComplaintPending,
		TargetRole:  target,
		Feedback:    models.FeedbackPending,
	}

	if image != nil {
		key, err := s.storeImage(ctx, complaint.ID, image)
		if err != nil {
			return nil, err
		}
		complaint.ImageKey = &key
	}

	pending, err := s.repo.CountPendingByCategory(ctx, req.Category)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count pending complaints")
	}

	if err := s.repo.Create(ctx, complaint); err != nil {
		if complaint.ImageKey != nil {
			if delErr := s.images.Delete(ctx, *complaint.ImageKey); delErr != nil {
				s.logger.Warn("failed to remove orphaned image", zap.String("key", *complaint.ImageKey), zap.Error(delErr))
			}
		}
		return nil, appErrors.Internal(err, "failed to create complaint")
	}
	s.metrics.ComplaintCreated(complaint.Category)

	if pending >= s.cfg.AutoAssignThreshold && target == models.TargetStaff {
		s.autoAssign(ctx, complaint)
	}

	if _, err := s.streaks.TouchStreak(ctx, student.ID); err != nil {
		s.logger.Warn("failed to update streak", zap.String("user_id", student.ID), zap.Error(err))
	}

	s.attachImageURL(ctx, complaint)
	return complaint, nil
}

func (s *ComplaintService) autoAssign(ctx context.Context, complaint *models.Complaint) {
	loads, err := s.repo.EmployeeLoads(ctx, s.cfg.FallbackAssigneeID)
	if err != nil {
		s.logger.Warn("auto-assign skipped, load lookup failed", zap.String("complaint_id", complaint.ID), zap.Error(err))
		s.metrics.AutoAssigned(assignOutcomeSkipped)
		return
	}

	var assigneeID, assigneeName, text, outcome string
	if len(loads) > 0 && loads[0].Load < s.cfg.MaxEmployeeLoad {
		best := loads[0]
		assigneeID, assigneeName, outcome = best.ID, best.Name, assignOutcomeEmployee
		text = fmt.Sprintf("High traffic in %s. Auto-assigned to %s (load %d/%d).", complaint.Category, best.Name, best.Load, s.cfg.MaxEmployeeLoad)
	} else {
		fallback := s.fallbackAssignee(ctx)
		if fallback == nil {
			s.logger.Warn("auto-assign skipped, no staff available and no fallback assignee", zap.String("complaint_id", complaint.ID), zap.String("category", string(complaint.Category)))
			s.metrics.AutoAssigned(assignOutcomeSkipped)
			return
		}
		assigneeID, assigneeName, outcome = fallback.ID, fallback.Name, assignOutcomeFallback
		text = "Staff busy or unavailable. Forwarded to the reserved fallback assignee."
	}

	msg := &models.ComplaintMessage{Role: models.SystemRole, Text: text, CreatedAt: s.now().UTC()}
	if err := s.repo.Assign(ctx, complaint.ID, assigneeID, nil, msg); err != nil {
		s.logger.Warn("auto-assign failed, complaint left pending", zap.String("complaint_id", complaint.ID), zap.Error(err))
		s.metrics.AutoAssigned(assignOutcomeSkipped)
		return
	}

	complaint.AssignedTo = &assigneeID
	complaint.AssigneeName = &assigneeName
	complaint.Status = models.ComplaintOnTheWay
	complaint.Messages = append(complaint.Messages, *msg)
	s.metrics.AutoAssigned(outcome)
	s.logger.Info("complaint auto-assigned", zap.String("complaint_id", complaint.ID), zap.String("assignee_id", assigneeID), zap.String("outcome", outcome))
}

func (s *ComplaintService) fallbackAssignee(ctx context.Context) *models.User {
	if s.cfg.FallbackAssigneeID == "" {
		return nil
	}
	user, err := s.users.FindByID(ctx, s.cfg.FallbackAssigneeID)
	if err != nil {
		s.logger.Warn("fallback assignee unavailable", zap.String("user_id", s.cfg.FallbackAssigneeID), zap.Error(err))
		return nil
	}
	return user
}

// List returns the complaints visible to the caller, newest first.
func (s *ComplaintService) List(ctx context.Context, actor models.Actor) ([]models.Complaint, error) {
	var filter models.ComplaintFilter
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleEmployee:
		filter.EmployeeID = actor.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot view complaints")
	}

	complaints, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list complaints")
	}
	for i := range complaints {
		s.attachImageURL(ctx, &complaints[i])
	}
	return complaints, nil
}

// Get returns one visible complaint with its message log.
func (s *ComplaintService) Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	complaint, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.Messages(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load complaint messages")
	}
	complaint.Messages = messages
	s.attachImageURL(ctx, complaint)
	return complaint, nil
}

// UpdateStatus applies a staff status change or a student's feedback.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req models.UpdateComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status update")
	}
	complaint, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var patch models.ComplaintPatch
	switch {
	case actor.Role == models.RoleStudent:
		if req.Status != nil || req.AdminComment != nil || req.Feedback == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Students can only provide feedback")
		}
		if patch, err = s.feedbackPatch(complaint, *req.Feedback); err != nil {
			return nil, err
		}
	case req.Feedback != nil:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student can give feedback")
	default:
		if req.Status == nil && req.AdminComment == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status or admin_comment is required")
		}
		to := complaint.Status
		if req.Status != nil {
			to = *req.Status
		}
		if !s.transitionAllowed(complaint.Status, to, actor.Role) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move complaint from %s to %s", complaint.Status, to))
		}
		patch = models.ComplaintPatch{Status: to, AdminComment: req.AdminComment}
	}

	if err := s.repo.ApplyPatch(ctx, id, complaint.Status, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "complaint was modified concurrently, reload and retry")
		}
		return nil, appErrors.Internal(err, "failed to update complaint")
	}

	complaint.Status = patch.Status
	if patch.AdminComment != nil {
		complaint.AdminComment = *patch.AdminComment
	}
	if patch.Feedback != nil {
		complaint.Feedback = *patch.Feedback
	}
	if patch.IsVerified != nil {
		complaint.IsVerified = *patch.IsVerified
	}

	if complaint.Status == models.ComplaintResolved {
		if awarded, err := s.badges.AwardBadges(ctx, complaint.StudentID); err != nil {
			s.logger.Warn("failed to award badges", zap.String("student_id", complaint.StudentID), zap.Error(err))
		} else if len(awarded) > 0 {
			s.logger.Info("badges awarded", zap.String("student_id", complaint.StudentID), zap.Strings("badges", awarded))
		}
	}

	s.attachImageURL(ctx, complaint)
	return complaint, nil
}

func (s *ComplaintService) feedbackPatch(complaint *models.Complaint, feedback models.Feedback) (models.ComplaintPatch, error) {
	if s.cfg.StrictTransitions && complaint.Status != models.ComplaintResolved {
		return models.ComplaintPatch{}, appErrors.Clone(appErrors.ErrFeedbackNotPermitted, "feedback can only be given on a resolved complaint")
	}
	verified := feedback == models.FeedbackSatisfied
	status := models.ComplaintInProgress
	if verified {
		status = models.ComplaintResolved
	}
	return models.ComplaintPatch{Status: status, Feedback: &feedback, IsVerified: &verified}, nil
}

// Assign hands the complaint to an explicit assignee (admins only) or to the
// caller.
func (s *ComplaintService) Assign(ctx context.Context, actor models.Actor, id string, req models.AssignComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignee")
	}
	complaint, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var (
		assigneeID = actor.ID
		name       = actor.Name
		target     *models.TargetRole
		text       string
	)
	if req.AssigneeID != "" && req.AssigneeID != actor.ID {
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign to someone else")
		}
		assignee, err := s.users.FindByID(ctx, req.AssigneeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "Assignee not found")
			}
			return nil, appErrors.Internal(err, "failed to load assignee")
		}
		if !assignee.Role.Staff() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must be a staff member")
		}
		admin := models.TargetAdmin
		assigneeID, name, target = assignee.ID, assignee.Name, &admin
		text = fmt.Sprintf("Task assigned to %s by Admin", name)
	} else {
		if name == "" {
			name = s.displayName(ctx, actor.ID)
		}
		text = fmt.Sprintf("Task accepted by %s", name)
	}

	if s.cfg.StrictTransitions && !s.transitionAllowed(complaint.Status, models.ComplaintOnTheWay, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot assign a complaint in status %s", complaint.Status))
	}

	senderID := actor.ID
	msg := &models.ComplaintMessage{SenderID: &senderID, Role: models.SystemRole, Text: text, CreatedAt: s.now().UTC()}
	if err := s.repo.Assign(ctx, id, assigneeID, target, msg); err != nil {
		return nil, s.mapWriteErr(err, "failed to assign complaint")
	}

	complaint.AssignedTo = &assigneeID
	complaint.AssigneeName = &name
	complaint.Status = models.ComplaintOnTheWay
	if target != nil {
		complaint.TargetRole = *target
	}
	complaint.Messages = append(complaint.Messages, *msg)
	s.attachImageURL(ctx, complaint)
	return complaint, nil
}

// Escalate routes the owning student's complaint to admins once the dwell
// time has passed.
func (s *ComplaintService) Escalate(ctx context.Context, student models.Actor, id string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil || complaint.StudentID != student.ID {
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Complaint not found")
		}
		return nil, appErrors.Internal(err, "failed to load complaint")
	}

	if s.now().Sub(complaint.CreatedAt) < s.cfg.EscalationDwell {
		return nil, appErrors.Clone(appErrors.ErrEscalationTooEarly, fmt.Sprintf("Please wait at least %s before escalating.", humanDuration(s.cfg.EscalationDwell)))
	}

	senderID := student.ID
	msg := &models.ComplaintMessage{SenderID: &senderID, Role: models.SystemRole, Text: "Complaint escalated to Admin due to delay.", CreatedAt: s.now().UTC()}
	if err := s.repo.Escalate(ctx, id, msg); err != nil {
		return nil, s.mapWriteErr(err, "failed to escalate complaint")
	}

	complaint.Escalated = true
	complaint.TargetRole = models.TargetAdmin
	complaint.Status = models.ComplaintPending
	complaint.Messages = append(complaint.Messages, *msg)
	s.attachImageURL(ctx, complaint)
	return complaint, nil
}

// AddMessage appends a chat message from the caller.
func (s *ComplaintService) AddMessage(ctx context.Context, actor models.Actor, id string, req models.ComplaintMessageRequest) (*models.ComplaintMessage, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message text is required")
	}
	if _, err := s.visible(ctx, actor, id); err != nil {
		return nil, err
	}

	senderID := actor.ID
	msg := &models.ComplaintMessage{ComplaintID: id, SenderID: &senderID, Role: string(actor.Role), Text: req.Text, CreatedAt: s.now().UTC()}
	if actor.Name != "" {
		name := actor.Name
		msg.SenderName = &name
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to add message")
	}
	return msg, nil
}

// visible loads a complaint and hides it from callers who may not see it.
func (s *ComplaintService) visible(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Complaint not found")
		}
		return nil, appErrors.Internal(err, "failed to load complaint")
	}
	if !canSee(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Complaint not found")
	}
	return complaint, nil
}

func canSee(actor models.Actor, c *models.Complaint) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return c.StudentID == actor.ID
	case models.RoleEmployee:
		return c.InStaffPool() || (c.AssignedTo != nil && *c.AssignedTo == actor.ID)
	}
	return false
}

type transition struct {
	from, to models.ComplaintStatus
}

var staffTransitions = map[transition]bool{
	{models.ComplaintPending, models.ComplaintAccepted}:    true,
	{models.ComplaintPending, models.ComplaintOnTheWay}:    true,
	{models.ComplaintPending, models.ComplaintInProgress}:  true,
	{models.ComplaintPending, models.ComplaintRejected}:    true,
	{models.ComplaintAccepted, models.ComplaintOnTheWay}:   true,
	{models.ComplaintAccepted, models.ComplaintInProgress}: true,
	{models.ComplaintAccepted, models.ComplaintRejected}:   true,
	{models.ComplaintOnTheWay, models.ComplaintInProgress}: true,
	{models.ComplaintOnTheWay, models.ComplaintResolved}:   true,
	{models.ComplaintOnTheWay, models.ComplaintRejected}:   true,
	{models.ComplaintInProgress, models.ComplaintResolved}: true,
	{models.ComplaintInProgress, models.ComplaintRejected}: true,
	{models.ComplaintInProgress, models.ComplaintOnTheWay}: true,
}

// adminOnlyTransitions reopen or short-circuit a complaint.
var adminOnlyTransitions = map[transition]bool{
	{models.ComplaintAccepted, models.ComplaintResolved}:   true,
	{models.ComplaintResolved, models.ComplaintInProgress}: true,
	{models.ComplaintRejected, models.ComplaintPending}:    true,
	{models.ComplaintPending, models.ComplaintResolved}:    true,
}

// transitionAllowed checks a staff status change against the allow-list.
// Keeping the status (comment-only updates) is always allowed. With strict
// transitions disabled any known status may follow any other.
func (s *ComplaintService) transitionAllowed(from, to models.ComplaintStatus, role models.UserRole) bool {
	if !to.Valid() {
		return false
	}
	if !s.cfg.StrictTransitions || from == to {
		return true
	}
	t := transition{from, to}
	if staffTransitions[t] {
		return true
	}
	return role == models.RoleAdmin && adminOnlyTransitions[t]
}

func (s *ComplaintService) storeImage(ctx context.Context, complaintID string, upload *models.Upload) (string, error) {
	if s.images == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "image uploads are disabled")
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnsupportedFileType, "image must be JPEG, PNG, WebP or GIF")
	}
	key := path.Join("complaints", complaintID, uuid.NewString()+ext)
	if err := s.images.Put(ctx, key, upload.Reader, upload.Size, contentType); err != nil {
		return "", appErrors.Internal(err, "failed to store image")
	}
	return key, nil
}

func (s *ComplaintService) attachImageURL(ctx context.Context, complaint *models.Complaint) {
	if complaint.ImageKey == nil || s.images == nil {
		return
	}
	url, err := s.images.PresignGet(ctx, *complaint.ImageKey, s.cfg.ImageURLTTL)
	if err != nil {
		s.logger.Warn("failed to sign image url", zap.String("complaint_id", complaint.ID), zap.Error(err))
		return
	}
	complaint.ImageURL = url
}

func (s *ComplaintService) displayName(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "Unknown Staff"
	}
	return user.Name
}

func (s *ComplaintService) mapWriteErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "Complaint not found")
	}
	return appErrors.Internal(err, message)
}

func humanDuration(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}
