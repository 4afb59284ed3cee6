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

const (
	hostelSelect = `SELECT h.id, h.name, h.capacity, h.warden, h.created_at, COUNT(u.id) AS residents
FROM hostels h
LEFT JOIN users u ON u.hostel_id = h.id AND u.role = 'Student'`
	usageSelect = `SELECT r.id, r.hostel_id, h.name AS hostel_name, r.date, r.water, r.electricity, r.food_waste, r.status, r.source, r.submitted_by, r.created_at
FROM resource_usage r
JOIN hostels h ON h.id = r.hostel_id`
)

// UsageRepository persists hostels and their resource readings.
type UsageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository constructs the repository.
func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// ListHostels returns hostels with their current student count.
func (r *UsageRepository) ListHostels(ctx context.Context) ([]models.Hostel, error) {
	hostels := make([]models.Hostel, 0)
	if err := r.db.SelectContext(ctx, &hostels, hostelSelect+` GROUP BY h.id ORDER BY h.name ASC`); err != nil {
		return nil, fmt.Errorf("list hostels: %w", err)
	}
	return hostels, nil
}

// FindHostel returns one hostel with its resident count.
func (r *UsageRepository) FindHostel(ctx context.Context, id string) (*models.Hostel, error) {
	var hostel models.Hostel
	if err := r.db.GetContext(ctx, &hostel, hostelSelect+` WHERE h.id = $1 GROUP BY h.id`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get hostel: %w", err)
	}
	return &hostel, nil
}

// CountHostels returns the number of hostels.
func (r *UsageRepository) CountHostels(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM hostels`); err != nil {
		return 0, fmt.Errorf("count hostels: %w", err)
	}
	return total, nil
}

// CreateHostel inserts a hostel. A duplicate name returns ErrDuplicate.
func (r *UsageRepository) CreateHostel(ctx context.Context, hostel *models.Hostel) error {
	if hostel.ID == "" {
		hostel.ID = uuid.NewString()
	}
	hostel.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO hostels (id, name, capacity, warden, created_at) VALUES (:id, :name, :capacity, :warden, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hostel); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create hostel: %w", ErrDuplicate)
		}
		return fmt.Errorf("create hostel: %w", err)
	}
	return nil
}

// DeleteHostel removes a hostel and, by cascade, its readings.
func (r *UsageRepository) DeleteHostel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hostels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete hostel: %w", err)
	}
	return expectOne(res)
}

// CreateUsage stores readings in one transaction.
func (r *UsageRepository) CreateUsage(ctx context.Context, rows []models.ResourceUsage) (err error) {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO resource_usage (id, hostel_id, date, water, electricity, food_waste, status, source, submitted_by, created_at)
VALUES (:id, :hostel_id, :date, :water, :electricity, :food_waste, :status, :source, :submitted_by, :created_at)`
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, query, &rows[i]); err != nil {
			return fmt.Errorf("insert usage: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	return nil
}

// FindUsage returns one reading.
func (r *UsageRepository) FindUsage(ctx context.Context, id string) (*models.ResourceUsage, error) {
	var usage models.ResourceUsage
	if err := r.db.GetContext(ctx, &usage, usageSelect+` WHERE r.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get usage: %w", err)
	}
	return &usage, nil
}

// ListPending returns readings awaiting approval, oldest first.
func (r *UsageRepository) ListPending(ctx context.Context) ([]models.ResourceUsage, error) {
	return r.selectUsage(ctx, "list pending usage", usageSelect+` WHERE r.status = 'Pending' ORDER BY r.created_at ASC`)
}

// ListRecent returns the newest readings.
func (r *UsageRepository) ListRecent(ctx context.Context, limit int) ([]models.ResourceUsage, error) {
	return r.selectUsage(ctx, "list recent usage", usageSelect+` ORDER BY r.date DESC, r.created_at DESC LIMIT $1`, limit)
}

// ListAll returns every reading, newest first.
func (r *UsageRepository) ListAll(ctx context.Context) ([]models.ResourceUsage, error) {
	return r.selectUsage(ctx, "list usage", usageSelect+` ORDER BY r.date DESC, h.name ASC`)
}

// SetStatus decides a Pending reading. Readings no longer Pending return
// sql.ErrNoRows.
func (r *UsageRepository) SetStatus(ctx context.Context, id string, status models.UsageStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE resource_usage SET status = $2 WHERE id = $1 AND status = 'Pending'`, id, status)
	if err != nil {
		return fmt.Errorf("update usage status: %w", err)
	}
	return expectOne(res)
}

// HostelHistory returns a hostel's non-rejected readings, newest first.
func (r *UsageRepository) HostelHistory(ctx context.Context, hostelID string, limit int) ([]models.UsagePoint, error) {
	const query = `SELECT r.date, h.name AS hostel_name, r.water, r.electricity, r.food_waste
FROM resource_usage r
JOIN hostels h ON h.id = r.hostel_id
WHERE r.hostel_id = $1 AND r.status <> 'Rejected'
ORDER BY r.date DESC, r.created_at DESC
LIMIT $2`
	points := make([]models.UsagePoint, 0)
	if err := r.db.SelectContext(ctx, &points, query, hostelID, limit); err != nil {
		return nil, fmt.Errorf("hostel usage history: %w", err)
	}
	return points, nil
}

// CampusHistory returns campus-wide daily totals, newest first.
func (r *UsageRepository) CampusHistory(ctx context.Context, limit int) ([]models.UsagePoint, error) {
	const query = `SELECT date, SUM(water) AS water, SUM(electricity) AS electricity, SUM(food_waste) AS food_waste
FROM resource_usage
WHERE status <> 'Rejected'
GROUP BY date
ORDER BY date DESC
LIMIT $1`
	points := make([]models.UsagePoint, 0)
	if err := r.db.SelectContext(ctx, &points, query, limit); err != nil {
		return nil, fmt.Errorf("campus usage history: %w", err)
	}
	return points, nil
}

// UsageSince returns non-rejected readings dated on or after since, grouped
// by hostel and oldest first within each hostel.
func (r *UsageRepository) UsageSince(ctx context.Context, since time.Time) ([]models.ResourceUsage, error) {
	return r.selectUsage(ctx, "usage since", usageSelect+` WHERE r.date >= $1 AND r.status <> 'Rejected'
ORDER BY h.name ASC, r.hostel_id ASC, r.date ASC, r.created_at ASC`, since)
}

// DashboardCounts aggregates the operations overview in one round trip.
func (r *UsageRepository) DashboardCounts(ctx context.Context) (*models.DashboardStats, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM users WHERE role = 'Student') AS total_students,
	(SELECT COUNT(*) FROM users WHERE role = 'Student' AND hostel_id IS NOT NULL) AS hostelers,
	(SELECT COUNT(*) FROM alerts WHERE status = 'Open') AS open_alerts,
	(SELECT COUNT(*) FROM complaints WHERE status = 'Pending') AS pending_complaints,
	(SELECT COUNT(*) FROM resource_usage WHERE status = 'Pending') AS pending_usage_logs`
	var stats models.DashboardStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	stats.DayScholars = stats.TotalStudents - stats.Hostelers
	return &stats, nil
}

func (r *UsageRepository) selectUsage(ctx context.Context, op, query string, args ...interface{}) ([]models.ResourceUsage, error) {
	rows := make([]models.ResourceUsage, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}
