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

const userColumns = `id, name, email, enrollment_number, password_hash, role, hostel_id, room_number, badges, contribution_streak, last_active_date, last_login, approved_by, approved_at, is_blocked, block_expires_at, block_reason, violation_count, created_at, updated_at`

// StreakFunc computes the next streak from the stored state. It returns false
// when nothing should change.
type StreakFunc func(lastActive *time.Time, streak int) (next int, changed bool)

// UserRepository provides database access for users, their activity and audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByEnrollment reports whether an enrollment number is taken.
func (r *UserRepository) ExistsByEnrollment(ctx context.Context, enrollment string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE enrollment_number = $1)`, enrollment); err != nil {
		return false, fmt.Errorf("check enrollment number: %w", err)
	}
	return exists, nil
}

// Create inserts a new user. Unique violations surface as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Badges == nil {
		user.Badges = []string{}
	}

	const query = `INSERT INTO users (id, name, email, enrollment_number, password_hash, role, hostel_id, room_number, badges, created_at, updated_at)
VALUES (:id, :name, :email, :enrollment_number, :password_hash, :role, :hostel_id, :room_number, :badges, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// RecordActivity applies fn to the user's streak state under a row lock and,
// when it reports a change, stores the new streak and the activity day.
// It returns the resulting streak.
func (r *UserRepository) RecordActivity(ctx context.Context, userID string, day time.Time, fn StreakFunc) (streak int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin activity transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var state struct {
		LastActive *time.Time `db:"last_active_date"`
		Streak     int        `db:"contribution_streak"`
	}
	const lockQuery = `SELECT last_active_date, contribution_streak FROM users WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &state, lockQuery, userID); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("lock user activity: %w", err)
	}

	next, changed := fn(state.LastActive, state.Streak)
	if !changed {
		if err = tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit activity: %w", err)
		}
		return state.Streak, nil
	}

	const updateQuery = `UPDATE users SET contribution_streak = $2, last_active_date = $3, updated_at = NOW() WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, userID, next, day); err != nil {
		return 0, fmt.Errorf("update streak: %w", err)
	}
	const historyQuery = `INSERT INTO user_activity_days (user_id, day) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err = tx.ExecContext(ctx, historyQuery, userID, day); err != nil {
		return 0, fmt.Errorf("append activity day: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit activity: %w", err)
	}
	return next, nil
}

// ActivityHistory returns the user's active days, oldest first.
func (r *UserRepository) ActivityHistory(ctx context.Context, userID string) ([]time.Time, error) {
	days := make([]time.Time, 0)
	if err := r.db.SelectContext(ctx, &days, `SELECT day FROM user_activity_days WHERE user_id = $1 ORDER BY day`, userID); err != nil {
		return nil, fmt.Errorf("list activity days: %w", err)
	}
	return days, nil
}

// AddBadge appends badge unless the user already holds it. It reports whether
// the badge was added.
func (r *UserRepository) AddBadge(ctx context.Context, userID, badge string) (bool, error) {
	const query = `UPDATE users SET badges = array_append(badges, $2), updated_at = NOW() WHERE id = $1 AND NOT ($2 = ANY(badges))`
	res, err := r.db.ExecContext(ctx, query, userID, badge)
	if err != nil {
		return false, fmt.Errorf("add badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add badge rows: %w", err)
	}
	return n == 1, nil
}

// List returns users ordered newest first.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ($1 = '' OR role = $1) AND ($2 = '' OR id::text <> $2) ORDER BY created_at DESC`
	role := ""
	if filter.Role != nil {
		role = string(*filter.Role)
	}
	users := make([]models.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, role, filter.ExcludeID); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountByRole returns per-role totals.
func (r *UserRepository) CountByRole(ctx context.Context) ([]models.RoleCount, error) {
	var rows []models.RoleCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM users GROUP BY role`); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return rows, nil
}

// CountCreatedSince counts users registered at or after since.
func (r *UserRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return total, nil
}

// Decide records an admin's approval decision by setting role.
func (r *UserRepository) Decide(ctx context.Context, id string, role models.UserRole, approverID string, at time.Time) error {
	const query = `UPDATE users SET role = $2, approved_by = $3, approved_at = $4, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "decide user", query, id, role, approverID, at)
}

// IncrementViolations records a warning.
func (r *UserRepository) IncrementViolations(ctx context.Context, id string) error {
	return r.execOne(ctx, "increment violations", `UPDATE users SET violation_count = violation_count + 1, updated_at = NOW() WHERE id = $1`, id)
}

// Block blocks the user. A nil expiry blocks permanently.
func (r *UserRepository) Block(ctx context.Context, id, reason string, expiresAt *time.Time) error {
	const query = `UPDATE users SET is_blocked = TRUE, block_reason = $2, block_expires_at = $3, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "block user", query, id, reason, expiresAt)
}

// Unblock clears any block.
func (r *UserRepository) Unblock(ctx context.Context, id string) error {
	const query = `UPDATE users SET is_blocked = FALSE, block_reason = NULL, block_expires_at = NULL, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "unblock user", query, id)
}

// CreateAuditLog persists an audit trail entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns a user's most recent audit entries.
func (r *UserRepository) ListAuditLogs(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	logs := make([]models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res)
}
