package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

const defaultBlockReason = "Violation of rules"

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEnrollment(ctx context.Context, enrollment string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	Unblock(ctx context.Context, id string) error
	ActivityHistory(ctx context.Context, userID string) ([]time.Time, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type streakToucher interface {
	TouchStreak(ctx context.Context, userID string) (int, error)
}

type hostelFinder interface {
	FindHostel(ctx context.Context, id string) (*models.Hostel, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Location          *time.Location
}

// AuthService registers users, issues tokens and serves the caller's profile.
type AuthService struct {
	repo      authUserRepository
	streaks   streakToucher
	hostels   hostelFinder
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, streaks streakToucher, hostels hostelFinder, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &AuthService{repo: repo, streaks: streaks, hostels: hostels, validator: validate, logger: logger, config: config, now: time.Now}
}

// Register creates an account awaiting approval. Self-declared employees are
// activated immediately.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	email := req.Email

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	var enrollment *string
	if trimmed := strings.TrimSpace(req.EnrollmentNumber); trimmed != "" {
		exists, err := s.repo.ExistsByEnrollment(ctx, trimmed)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check enrollment number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Enrollment number already registered")
		}
		enrollment = &trimmed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	role := models.RolePending
	if req.Role == models.RoleEmployee {
		role = models.RoleEmployee
	}
	user := &models.User{
		Name:             strings.TrimSpace(req.Name),
		Email:            email,
		EnrollmentNumber: enrollment,
		PasswordHash:     string(hash),
		Role:             role,
		HostelID:         optionalString(req.HostelID),
		RoomNumber:       optionalString(req.RoomNumber),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegister,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(fmt.Sprintf(`{"role":%q}`, user.Role)),
	})

	info := userInfo(user)
	return &info, nil
}

// Login authenticates a user, updates the streak and issues an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}

	switch user.Role {
	case models.RolePending:
		return nil, appErrors.Clone(appErrors.ErrAccountPending, "Account pending approval. Please contact Admin.")
	case models.RoleRejected:
		return nil, appErrors.Clone(appErrors.ErrAccountRejected, "Account registration rejected. Please contact Admin.")
	}

	now := s.now().UTC()
	if user.IsBlocked {
		if user.BlockActive(now) {
			return nil, appErrors.Clone(appErrors.ErrAccountBlocked, s.blockedMessage(user))
		}
		if err := s.repo.Unblock(ctx, user.ID); err != nil {
			s.logger.Warn("failed to lift expired block", zap.String("user_id", user.ID), zap.Error(err))
		}
		user.IsBlocked = false
		user.BlockExpiresAt = nil
		user.BlockReason = nil
	}

	if s.streaks != nil {
		streak, err := s.streaks.TouchStreak(ctx, user.ID)
		if err != nil {
			s.logger.Warn("failed to update streak on login", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			user.ContributionStreak = streak
		}
	}

	token, err := s.generateAccessToken(user, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    now,
		User:        userInfo(user),
	}, nil
}

// Profile returns the caller's own record with activity history.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	history, err := s.repo.ActivityHistory(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load activity history")
	}

	profile := &models.UserProfile{User: *user, ActivityHistory: history}
	if user.HostelID != nil && s.hostels != nil {
		if hostel, err := s.hostels.FindHostel(ctx, *user.HostelID); err == nil {
			profile.HostelName = &hostel.Name
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to resolve hostel for profile", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return profile, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Token is not valid")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Token is not valid")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) blockedMessage(user *models.User) string {
	until := "PERMANENTLY"
	if user.BlockExpiresAt != nil {
		until = user.BlockExpiresAt.In(s.config.Location).Format("2006-01-02")
	}
	reason := defaultBlockReason
	if user.BlockReason != nil && strings.TrimSpace(*user.BlockReason) != "" {
		reason = *user.BlockReason
	}
	return fmt.Sprintf("Access Denied: Account Blocked until %s. Reason: %s", until, reason)
}

func (s *AuthService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		Role:               user.Role,
		HostelID:           user.HostelID,
		EnrollmentNumber:   user.EnrollmentNumber,
		ContributionStreak: user.ContributionStreak,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
