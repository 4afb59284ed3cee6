package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

// AlertRepository persists analyzer alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = models.AlertOpen
	}
	const query = `INSERT INTO alerts (id, hostel_id, type, severity, status, message, created_at)
VALUES (:id, :hostel_id, :type, :severity, :status, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// List returns alerts newest first, optionally filtered by status.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	query := `SELECT a.id, a.hostel_id, h.name AS hostel_name, a.type, a.severity, a.status, a.message, a.created_at, a.resolved_at
FROM alerts a
LEFT JOIN hostels h ON h.id = a.hostel_id`
	var args []interface{}
	if filter.Status != nil {
		query += ` WHERE a.status = $1`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY a.created_at DESC LIMIT 200`

	alerts := make([]models.Alert, 0)
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Resolve closes an alert. Unknown ids return sql.ErrNoRows; resolving twice
// keeps the first timestamp.
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE alerts SET status = 'Resolved', resolved_at = COALESCE(resolved_at, $2) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return expectOne(res)
}
