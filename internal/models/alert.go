package models

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// AlertStatus tracks whether an alert still needs attention.
type AlertStatus string

const (
	AlertOpen     AlertStatus = "Open"
	AlertResolved AlertStatus = "Resolved"
)

// Alert is a notification derived from usage analysis.
type Alert struct {
	ID         string      `db:"id" json:"id"`
	HostelID   *string     `db:"hostel_id" json:"hostel_id,omitempty"`
	HostelName *string     `db:"hostel_name" json:"hostel_name,omitempty"`
	Type       string      `db:"type" json:"type"`
	Severity   Severity    `db:"severity" json:"severity"`
	Status     AlertStatus `db:"status" json:"status"`
	Message    string      `db:"message" json:"message"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status *AlertStatus
}

// TestAlertRequest publishes a manual trigger on the realtime channel.
type TestAlertRequest struct {
	Message string   `json:"message" validate:"required,max=500"`
	Room    UserRole `json:"room" validate:"omitempty,oneof=Student Admin Employee Security"`
}
