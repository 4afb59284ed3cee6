package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	decided    map[string]models.UserRole
	violations map[string]int
	blocks     map[string]*time.Time
	unblocked  []string
	audits     []*models.AuditLog
	since      time.Time
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*models.User{}, decided: map[string]models.UserRole{}, violations: map[string]int{}, blocks: map[string]*time.Time{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	m.lastFilter = filter
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if u.ID == filter.ExcludeID {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Decide(_ context.Context, id string, role models.UserRole, _ string, _ time.Time) error {
	m.decided[id] = role
	return nil
}

func (m *mockUserRepo) IncrementViolations(_ context.Context, id string) error {
	m.violations[id]++
	return nil
}

func (m *mockUserRepo) Block(_ context.Context, id, _ string, expiresAt *time.Time) error {
	m.blocks[id] = expiresAt
	return nil
}

func (m *mockUserRepo) Unblock(_ context.Context, id string) error {
	m.unblocked = append(m.unblocked, id)
	return nil
}

func (m *mockUserRepo) CountByRole(context.Context) ([]models.RoleCount, error) {
	return []models.RoleCount{{Role: models.RoleStudent, Count: 40}, {Role: models.RoleEmployee, Count: 5}, {Role: models.RolePending, Count: 3}}, nil
}

func (m *mockUserRepo) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	m.since = since
	return 2, nil
}

func (m *mockUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func (m *mockUserRepo) ListAuditLogs(context.Context, string, int) ([]models.AuditLog, error) {
	return []models.AuditLog{{Action: models.AuditActionLogin}}, nil
}

func TestUserServiceApprove(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RolePending})
	svc := NewUserService(repo, nil, nil, nil)

	user, err := svc.Approve(context.Background(), "admin", "u1", models.ApproveUserRequest{Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, models.RoleStudent, repo.decided["u1"])
	require.NotNil(t, user.ApprovedBy)
	assert.Equal(t, "admin", *user.ApprovedBy)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserApprove, repo.audits[0].Action)
}

func TestUserServiceApproveRequiresRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(&models.User{ID: "u1", Role: models.RolePending}), nil, nil, nil)
	_, err := svc.Approve(context.Background(), "admin", "u1", models.ApproveUserRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceRejectOnlyPending(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent}, &models.User{ID: "u2", Role: models.RolePending})
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.Reject(context.Background(), "admin", "u1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	user, err := svc.Reject(context.Background(), "admin", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRejected, user.Role)

	_, err = svc.Reject(context.Background(), "admin", "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceManageAccess(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent}, &models.User{ID: "a2", Role: models.RoleAdmin})
	svc := NewUserService(repo, nil, nil, nil)
	svc.now = func() time.Time { return now }

	user, err := svc.ManageAccess(context.Background(), "admin", "u1", models.AccessRequest{Action: models.AccessWarn})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ViolationCount)
	assert.Equal(t, 1, repo.violations["u1"])

	user, err = svc.ManageAccess(context.Background(), "admin", "u1", models.AccessRequest{Action: models.AccessBlockTemp})
	require.NoError(t, err)
	require.NotNil(t, user.BlockExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *user.BlockExpiresAt)
	assert.Equal(t, "Temporary Suspension", *user.BlockReason)

	user, err = svc.ManageAccess(context.Background(), "admin", "u1", models.AccessRequest{Action: models.AccessBlockPerm, Reason: "fraud"})
	require.NoError(t, err)
	assert.Nil(t, user.BlockExpiresAt)
	assert.Equal(t, "fraud", *user.BlockReason)
	assert.True(t, user.BlockActive(now.AddDate(5, 0, 0)))

	user, err = svc.ManageAccess(context.Background(), "admin", "u1", models.AccessRequest{Action: models.AccessUnblock})
	require.NoError(t, err)
	assert.False(t, user.IsBlocked)
	assert.Equal(t, []string{"u1"}, repo.unblocked)

	_, err = svc.ManageAccess(context.Background(), "admin", "admin", models.AccessRequest{Action: models.AccessWarn})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.ManageAccess(context.Background(), "admin", "a2", models.AccessRequest{Action: models.AccessBlockPerm})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.ManageAccess(context.Background(), "admin", "u1", models.AccessRequest{Action: "delete"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceListExcludesCaller(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "admin", Role: models.RoleAdmin}, &models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewUserService(repo, nil, nil, nil)

	users, err := svc.List(context.Background(), "admin", "")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)

	_, err = svc.List(context.Background(), "admin", "Wizard")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceStats(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil, loc)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, stats.Total)
	assert.Equal(t, 40, stats.ByRole[models.RoleStudent])
	assert.Equal(t, 2, stats.NewToday)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), repo.since)
}
