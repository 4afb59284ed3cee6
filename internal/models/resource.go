package models

import "time"

// Hostel is a residence whose resource usage is tracked.
type Hostel struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Warden    *string   `db:"warden" json:"warden,omitempty"`
	Residents int       `db:"residents" json:"residents"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateHostelRequest registers a hostel.
type CreateHostelRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
	Warden   string `json:"warden" validate:"max=120"`
}

// UsageStatus is the approval state of a usage reading.
type UsageStatus string

const (
	UsagePending  UsageStatus = "Pending"
	UsageApproved UsageStatus = "Approved"
	UsageRejected UsageStatus = "Rejected"
)

// UsageSourceManual tags readings entered through the API.
const UsageSourceManual = "manual"

// ResourceUsage is one hostel's readings for a day.
type ResourceUsage struct {
	ID          string      `db:"id" json:"id"`
	HostelID    string      `db:"hostel_id" json:"hostel_id"`
	HostelName  string      `db:"hostel_name" json:"hostel_name,omitempty"`
	Date        time.Time   `db:"date" json:"date"`
	Water       float64     `db:"water" json:"water"`
	Electricity float64     `db:"electricity" json:"electricity"`
	FoodWaste   float64     `db:"food_waste" json:"food_waste"`
	Status      UsageStatus `db:"status" json:"status"`
	Source      string      `db:"source" json:"source"`
	SubmittedBy *string     `db:"submitted_by" json:"submitted_by,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// UsageReading holds the three metered quantities.
type UsageReading struct {
	Water       float64 `json:"water"`
	Electricity float64 `json:"electricity"`
	FoodWaste   float64 `json:"food_waste"`
}

// Reading extracts the metered quantities.
func (u ResourceUsage) Reading() UsageReading {
	return UsageReading{Water: u.Water, Electricity: u.Electricity, FoodWaste: u.FoodWaste}
}

// DailyLogEntry is one manual reading. Date defaults to today.
type DailyLogEntry struct {
	HostelID    string  `json:"hostel_id" validate:"required,uuid"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Water       float64 `json:"water" validate:"gte=0"`
	Electricity float64 `json:"electricity" validate:"gte=0"`
	FoodWaste   float64 `json:"food_waste" validate:"gte=0"`
}

// DailyLogsRequest submits manual readings for approval.
type DailyLogsRequest struct {
	Logs []DailyLogEntry `json:"logs" validate:"required,min=1,max=100,dive"`
}

// DailyLogsResult reports stored readings and immediate insights.
type DailyLogsResult struct {
	Saved    int      `json:"saved"`
	Insights []string `json:"insights"`
}

// ApproveUsageRequest decides a pending reading.
type ApproveUsageRequest struct {
	Status UsageStatus `json:"status" validate:"required,oneof=Approved Rejected"`
}

// ImportResult summarises a usage file import.
type ImportResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Alerts    int `json:"alerts"`
}

// UsagePoint is one row of an analytics series.
type UsagePoint struct {
	Date        time.Time `db:"date" json:"date"`
	HostelName  string    `db:"hostel_name" json:"hostel_name,omitempty"`
	Water       float64   `db:"water" json:"water"`
	Electricity float64   `db:"electricity" json:"electricity"`
	FoodWaste   float64   `db:"food_waste" json:"food_waste"`
}

// UsageComparison is the percent change of the latest point over the previous.
type UsageComparison struct {
	WaterDiff float64 `json:"water_diff"`
	ElecDiff  float64 `json:"elec_diff"`
	WasteDiff float64 `json:"waste_diff"`
}

// UsageAnalytics is a usage history newest first with its comparison.
type UsageAnalytics struct {
	History    []UsagePoint     `json:"history"`
	Comparison *UsageComparison `json:"comparison"`
}

// DashboardStats is the operations overview.
type DashboardStats struct {
	TotalStudents     int `db:"total_students" json:"total_students"`
	Hostelers         int `db:"hostelers" json:"hostelers"`
	DayScholars       int `db:"-" json:"day_scholars"`
	OpenAlerts        int `db:"open_alerts" json:"open_alerts"`
	PendingComplaints int `db:"pending_complaints" json:"pending_complaints"`
	PendingUsageLogs  int `db:"pending_usage_logs" json:"pending_usage_logs"`
}
