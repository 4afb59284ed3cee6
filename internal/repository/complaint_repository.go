package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

const complaintSelect = `SELECT c.id, c.student_id, s.name AS student_name, c.category, c.title, c.description, c.image_key, c.status, c.target_role, c.assigned_to, a.name AS assignee_name, c.escalated, c.feedback, c.is_verified, c.admin_comment, c.created_at, c.updated_at
FROM complaints c
JOIN users s ON s.id = c.student_id
LEFT JOIN users a ON a.id = c.assigned_to`

// ComplaintRepository persists complaints and their message log.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a complaint.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	if complaint.Status == "" {
		complaint.Status = models.ComplaintPending
	}
	if complaint.Feedback == "" {
		complaint.Feedback = models.FeedbackPending
	}

	const query = `INSERT INTO complaints (id, student_id, category, title, description, image_key, status, target_role, assigned_to, escalated, feedback, is_verified, admin_comment, created_at, updated_at)
VALUES (:id, :student_id, :category, :title, :description, :image_key, :status, :target_role, :assigned_to, :escalated, :feedback, :is_verified, :admin_comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// FindByID returns a complaint with display names resolved.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, complaintSelect+` WHERE c.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return &complaint, nil
}

// List returns complaints visible under filter, newest first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("c.student_id = $%d", len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("((c.status = 'Pending' AND c.target_role = 'staff') OR c.assigned_to = $%d)", len(args)))
	}

	query := complaintSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC"

	complaints := make([]models.Complaint, 0)
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// CountPendingByCategory counts Pending complaints of one category.
func (r *ComplaintRepository) CountPendingByCategory(ctx context.Context, category models.ComplaintCategory) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM complaints WHERE category = $1 AND status = 'Pending'`
	if err := r.db.GetContext(ctx, &count, query, category); err != nil {
		return 0, fmt.Errorf("count pending complaints: %w", err)
	}
	return count, nil
}

// CountResolvedByStudent counts a student's Resolved complaints.
func (r *ComplaintRepository) CountResolvedByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM complaints WHERE student_id = $1 AND status = 'Resolved'`
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count resolved complaints: %w", err)
	}
	return count, nil
}

// EmployeeLoads returns assignable employees with their open workload, least
// loaded first. Employees carrying a Security or System badge and excludeID
// are left out.
func (r *ComplaintRepository) EmployeeLoads(ctx context.Context, excludeID string) ([]models.EmployeeLoad, error) {
	const query = `SELECT u.id, u.name, COUNT(c.id) AS load
FROM users u
LEFT JOIN complaints c ON c.assigned_to = u.id AND c.status IN ('On The Way', 'In Progress')
WHERE u.role = 'Employee' AND NOT (u.badges && ARRAY['Security', 'System']::text[]) AND ($1 = '' OR u.id::text <> $1)
GROUP BY u.id, u.name
ORDER BY load ASC, u.name ASC, u.id ASC`
	loads := make([]models.EmployeeLoad, 0)
	if err := r.db.SelectContext(ctx, &loads, query, excludeID); err != nil {
		return nil, fmt.Errorf("list employee loads: %w", err)
	}
	return loads, nil
}

// Assign hands the complaint to assigneeID, moves it to On The Way and
// appends msg in one transaction. A nil target keeps the current routing.
func (r *ComplaintRepository) Assign(ctx context.Context, id, assigneeID string, target *models.TargetRole, msg *models.ComplaintMessage) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var targetArg interface{}
	if target != nil {
		targetArg = string(*target)
	}
	const query = `UPDATE complaints SET assigned_to = $2, status = 'On The Way', target_role = COALESCE($3, target_role), updated_at = NOW() WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, id, assigneeID, targetArg)
	if err != nil {
		return fmt.Errorf("assign complaint: %w", err)
	}
	if err = expectOne(res); err != nil {
		return err
	}
	if err = insertMessage(ctx, tx, id, msg); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assign: %w", err)
	}
	return nil
}

// Escalate routes the complaint to admins and resets it to Pending.
func (r *ComplaintRepository) Escalate(ctx context.Context, id string, msg *models.ComplaintMessage) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin escalate transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE complaints SET escalated = TRUE, target_role = 'Admin', status = 'Pending', updated_at = NOW() WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("escalate complaint: %w", err)
	}
	if err = expectOne(res); err != nil {
		return err
	}
	if err = insertMessage(ctx, tx, id, msg); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit escalate: %w", err)
	}
	return nil
}

// ApplyPatch writes patch only if the complaint is still in status from.
// A concurrent change surfaces as sql.ErrNoRows.
func (r *ComplaintRepository) ApplyPatch(ctx context.Context, id string, from models.ComplaintStatus, patch models.ComplaintPatch) error {
	const query = `UPDATE complaints SET status = $3,
	admin_comment = COALESCE($4, admin_comment),
	feedback = COALESCE($5, feedback),
	is_verified = COALESCE($6, is_verified),
	updated_at = NOW()
WHERE id = $1 AND status = $2`

	var comment, feedback, verified interface{}
	if patch.AdminComment != nil {
		comment = *patch.AdminComment
	}
	if patch.Feedback != nil {
		feedback = string(*patch.Feedback)
	}
	if patch.IsVerified != nil {
		verified = *patch.IsVerified
	}

	res, err := r.db.ExecContext(ctx, query, id, from, patch.Status, comment, feedback, verified)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	return expectOne(res)
}

// Messages returns the complaint's log in chronological order.
func (r *ComplaintRepository) Messages(ctx context.Context, complaintID string) ([]models.ComplaintMessage, error) {
	const query = `SELECT m.id, m.complaint_id, m.sender_id, u.name AS sender_name, m.role, m.text, m.created_at
FROM complaint_messages m
LEFT JOIN users u ON u.id = m.sender_id
WHERE m.complaint_id = $1
ORDER BY m.created_at ASC, m.id ASC`
	messages := make([]models.ComplaintMessage, 0)
	if err := r.db.SelectContext(ctx, &messages, query, complaintID); err != nil {
		return nil, fmt.Errorf("list complaint messages: %w", err)
	}
	return messages, nil
}

// AddMessage appends one message to the log.
func (r *ComplaintRepository) AddMessage(ctx context.Context, msg *models.ComplaintMessage) error {
	return insertMessage(ctx, r.db, msg.ComplaintID, msg)
}

func insertMessage(ctx context.Context, exec sqlx.ExecerContext, complaintID string, msg *models.ComplaintMessage) error {
	if msg == nil {
		return nil
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ComplaintID = complaintID
	const query = `INSERT INTO complaint_messages (id, complaint_id, sender_id, role, text, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := exec.ExecContext(ctx, query, msg.ID, msg.ComplaintID, msg.SenderID, msg.Role, msg.Text, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert complaint message: %w", err)
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
