package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

var complaintCols = []string{"id", "student_id", "student_name", "category", "title", "description", "image_key", "status", "target_role", "assigned_to", "assignee_name", "escalated", "feedback", "is_verified", "admin_comment", "created_at", "updated_at"}

func TestComplaintRepositoryListForEmployee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(complaintCols).
		AddRow("c1", "s1", "Asha", "WiFi", "No signal", "Block B", nil, "Pending", "staff", nil, nil, false, "Pending", false, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ((c.status = 'Pending' AND c.target_role = 'staff') OR c.assigned_to = $1) ORDER BY c.created_at DESC")).
		WithArgs("e1").
		WillReturnRows(rows)

	complaints, err := repo.List(context.Background(), models.ComplaintFilter{EmployeeID: "e1"})
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	assert.True(t, complaints[0].InStaffPool())
	assert.Equal(t, "Asha", complaints[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.student_id = $1 ORDER BY c.created_at DESC")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(complaintCols))

	complaints, err := repo.List(context.Background(), models.ComplaintFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, complaints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryEmployeeLoads(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "load"}).
		AddRow("e2", "Bala", 0).
		AddRow("e1", "Anil", 3)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY load ASC, u.name ASC, u.id ASC")).
		WithArgs("fallback").
		WillReturnRows(rows)

	loads, err := repo.EmployeeLoads(context.Background(), "fallback")
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "e2", loads[0].ID)
	assert.Equal(t, 3, loads[1].Load)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryAssignWritesMessage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	target := models.TargetAdmin
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET assigned_to = $2, status = 'On The Way'")).
		WithArgs("c1", "e1", "Admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaint_messages")).
		WithArgs(sqlmock.AnyArg(), "c1", nil, models.SystemRole, "Task assigned to Anil by Admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Assign(context.Background(), "c1", "e1", &target, &models.ComplaintMessage{Role: models.SystemRole, Text: "Task assigned to Anil by Admin"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryAssignMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE complaints SET assigned_to").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Assign(context.Background(), "missing", "e1", nil, &models.ComplaintMessage{Role: models.SystemRole, Text: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryApplyPatchStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	verified := true
	feedback := models.FeedbackSatisfied
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("c1", "In Progress", "Resolved", nil, "Satisfied", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyPatch(context.Background(), "c1", models.ComplaintInProgress, models.ComplaintPatch{
		Status:     models.ComplaintResolved,
		Feedback:   &feedback,
		IsVerified: &verified,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryEscalate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET escalated = TRUE, target_role = 'Admin', status = 'Pending'")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO complaint_messages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Escalate(context.Background(), "c1", &models.ComplaintMessage{Role: models.SystemRole, Text: "escalated"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
