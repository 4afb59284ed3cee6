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

const foodSelect = `SELECT f.id, f.hostel_id, h.name AS hostel_name, f.date, f.meal_type, f.items, f.prepared, f.served, f.leftover,
f.cooked_at, f.stored_at, f.safety_status, f.edibility, f.action, f.logged_by, f.created_at
FROM food_logs f
JOIN hostels h ON h.id = f.hostel_id`

// FoodRepository persists kitchen food logs.
type FoodRepository struct {
	db *sqlx.DB
}

// NewFoodRepository constructs the repository.
func NewFoodRepository(db *sqlx.DB) *FoodRepository {
	return &FoodRepository{db: db}
}

// Create inserts a food log.
func (r *FoodRepository) Create(ctx context.Context, log *models.FoodLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Action == "" {
		log.Action = models.FoodPending
	}
	const query = `INSERT INTO food_logs (id, hostel_id, date, meal_type, items, prepared, served, leftover, cooked_at, stored_at, safety_status, edibility, action, logged_by, created_at)
VALUES (:id, :hostel_id, :date, :meal_type, :items, :prepared, :served, :leftover, :cooked_at, :stored_at, :safety_status, :edibility, :action, :logged_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create food log: %w", err)
	}
	return nil
}

// FindByID returns one food log or sql.ErrNoRows.
func (r *FoodRepository) FindByID(ctx context.Context, id string) (*models.FoodLog, error) {
	var log models.FoodLog
	if err := r.db.GetContext(ctx, &log, foodSelect+` WHERE f.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get food log: %w", err)
	}
	return &log, nil
}

// List returns the newest food logs first.
func (r *FoodRepository) List(ctx context.Context, limit int) ([]models.FoodLog, error) {
	logs := make([]models.FoodLog, 0)
	if err := r.db.SelectContext(ctx, &logs, foodSelect+` ORDER BY f.date DESC, f.created_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("list food logs: %w", err)
	}
	return logs, nil
}

// SetAction records what happened to the leftovers. Unknown ids return
// sql.ErrNoRows.
func (r *FoodRepository) SetAction(ctx context.Context, id string, action models.FoodAction) error {
	res, err := r.db.ExecContext(ctx, `UPDATE food_logs SET action = $2 WHERE id = $1`, id, action)
	if err != nil {
		return fmt.Errorf("set food action: %w", err)
	}
	return expectOne(res)
}
