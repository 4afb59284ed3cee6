package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent  UserRole = "Student"
	RoleAdmin    UserRole = "Admin"
	RoleEmployee UserRole = "Employee"
	RoleSecurity UserRole = "Security"
	RolePending  UserRole = "Pending"
	RoleRejected UserRole = "Rejected"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleEmployee, RoleSecurity, RolePending, RoleRejected:
		return true
	}
	return false
}

// Staff reports whether r handles complaints.
func (r UserRole) Staff() bool {
	return r == RoleAdmin || r == RoleEmployee || r == RoleSecurity
}

// User represents an application user stored in the users table.
type User struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Email              string         `db:"email" json:"email"`
	EnrollmentNumber   *string        `db:"enrollment_number" json:"enrollment_number,omitempty"`
	PasswordHash       string         `db:"password_hash" json:"-"`
	Role               UserRole       `db:"role" json:"role"`
	HostelID           *string        `db:"hostel_id" json:"hostel_id,omitempty"`
	RoomNumber         *string        `db:"room_number" json:"room_number,omitempty"`
	Badges             pq.StringArray `db:"badges" json:"badges"`
	ContributionStreak int            `db:"contribution_streak" json:"contribution_streak"`
	LastActiveDate     *time.Time     `db:"last_active_date" json:"last_active_date,omitempty"`
	LastLogin          *time.Time     `db:"last_login" json:"last_login,omitempty"`
	ApprovedBy         *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	IsBlocked          bool           `db:"is_blocked" json:"is_blocked"`
	BlockExpiresAt     *time.Time     `db:"block_expires_at" json:"block_expires_at,omitempty"`
	BlockReason        *string        `db:"block_reason" json:"block_reason,omitempty"`
	ViolationCount     int            `db:"violation_count" json:"violation_count"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// HasBadge reports whether the user already holds badge.
func (u *User) HasBadge(badge string) bool {
	for _, b := range u.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// BlockActive reports whether the block is still in force at now. A block
// without expiry is permanent.
func (u *User) BlockActive(now time.Time) bool {
	if !u.IsBlocked {
		return false
	}
	return u.BlockExpiresAt == nil || now.Before(*u.BlockExpiresAt)
}

// UserProfile is the authenticated user's own view including activity history.
type UserProfile struct {
	User
	HostelName      *string     `json:"hostel_name,omitempty"`
	ActivityHistory []time.Time `json:"activity_history"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	ExcludeID string
}

// UserStats summarises the user base for the admin dashboard.
type UserStats struct {
	Total    int              `json:"total"`
	ByRole   map[UserRole]int `json:"by_role"`
	NewToday int              `json:"new_today"`
}

// RoleCount is one row of a per-role aggregate.
type RoleCount struct {
	Role  UserRole `db:"role"`
	Count int      `db:"count"`
}

// AccessAction enumerates admin moderation actions.
type AccessAction string

const (
	AccessWarn      AccessAction = "warn"
	AccessBlockTemp AccessAction = "block_temp"
	AccessBlockPerm AccessAction = "block_perm"
	AccessUnblock   AccessAction = "unblock"
)

// AccessRequest is the payload for moderating a user.
type AccessRequest struct {
	Action AccessAction `json:"action" validate:"required,oneof=warn block_temp block_perm unblock"`
	Reason string       `json:"reason" validate:"max=500"`
}

// ApproveUserRequest sets the role granted on approval.
type ApproveUserRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=Student Admin Employee Security"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
