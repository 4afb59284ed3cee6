package models

import (
	"io"
	"strings"
	"time"
)

// ComplaintCategory classifies a complaint.
type ComplaintCategory string

const (
	CategoryLeakage     ComplaintCategory = "Leakage"
	CategoryElectricity ComplaintCategory = "Electricity"
	CategoryCleanliness ComplaintCategory = "Cleanliness"
	CategoryWiFi        ComplaintCategory = "WiFi"
	CategoryFood        ComplaintCategory = "Food"
	CategoryOther       ComplaintCategory = "Other"
	CategoryEmergency   ComplaintCategory = "Emergency"
)

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "Pending"
	ComplaintAccepted   ComplaintStatus = "Accepted"
	ComplaintOnTheWay   ComplaintStatus = "On The Way"
	ComplaintInProgress ComplaintStatus = "In Progress"
	ComplaintResolved   ComplaintStatus = "Resolved"
	ComplaintRejected   ComplaintStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintPending, ComplaintAccepted, ComplaintOnTheWay, ComplaintInProgress, ComplaintResolved, ComplaintRejected:
		return true
	}
	return false
}

// TargetRole routes a complaint either to the staff pool or to admins.
type TargetRole string

const (
	TargetStaff TargetRole = "staff"
	TargetAdmin TargetRole = "Admin"
)

// ParseTargetRole normalises the optional target hint. Absent values and the
// literal strings "undefined" and "null" select the staff pool.
func ParseTargetRole(raw string) (TargetRole, bool) {
	switch strings.TrimSpace(raw) {
	case "", "undefined", "null", string(TargetStaff):
		return TargetStaff, true
	case string(TargetAdmin):
		return TargetAdmin, true
	}
	return "", false
}

// Feedback is the student's verdict on a resolution.
type Feedback string

const (
	FeedbackPending     Feedback = "Pending"
	FeedbackSatisfied   Feedback = "Satisfied"
	FeedbackUnsatisfied Feedback = "Unsatisfied"
)

// Complaint represents a student ticket.
type Complaint struct {
	ID           string             `db:"id" json:"id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	StudentName  string             `db:"student_name" json:"student_name,omitempty"`
	Category     ComplaintCategory  `db:"category" json:"category"`
	Title        string             `db:"title" json:"title"`
	Description  string             `db:"description" json:"description"`
	ImageKey     *string            `db:"image_key" json:"-"`
	ImageURL     string             `db:"-" json:"image_url,omitempty"`
	Status       ComplaintStatus    `db:"status" json:"status"`
	TargetRole   TargetRole         `db:"target_role" json:"target_role"`
	AssignedTo   *string            `db:"assigned_to" json:"assigned_to,omitempty"`
	AssigneeName *string            `db:"assignee_name" json:"assignee_name,omitempty"`
	Escalated    bool               `db:"escalated" json:"escalated"`
	Feedback     Feedback           `db:"feedback" json:"feedback"`
	IsVerified   bool               `db:"is_verified" json:"is_verified"`
	AdminComment string             `db:"admin_comment" json:"admin_comment"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
	Messages     []ComplaintMessage `db:"-" json:"messages,omitempty"`
}

// InStaffPool reports whether the complaint is unclaimed staff work.
func (c *Complaint) InStaffPool() bool {
	return c.Status == ComplaintPending && c.TargetRole == TargetStaff
}

// ComplaintMessage is one entry of a complaint's conversation. Workflow notes
// carry Role SystemRole; their sender is the actor who triggered them, or nil
// for automatic assignment.
type ComplaintMessage struct {
	ID          string    `db:"id" json:"id"`
	ComplaintID string    `db:"complaint_id" json:"complaint_id"`
	SenderID    *string   `db:"sender_id" json:"sender_id,omitempty"`
	SenderName  *string   `db:"sender_name" json:"sender_name,omitempty"`
	Role        string    `db:"role" json:"role"`
	Text        string    `db:"text" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SystemRole labels messages written by the workflow itself.
const SystemRole = "System"

// CreateComplaintRequest carries the form fields of a new complaint.
type CreateComplaintRequest struct {
	Category    ComplaintCategory `form:"category" json:"category" validate:"required,oneof=Leakage Electricity Cleanliness WiFi Food Other Emergency"`
	Title       string            `form:"title" json:"title" validate:"required,min=3,max=200"`
	Description string            `form:"description" json:"description" validate:"required,min=3,max=5000"`
	TargetRole  string            `form:"target_role" json:"target_role"`
}

// Upload is an attached file streamed from a multipart request.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// UpdateComplaintRequest changes status, comment or feedback. Students may
// only send feedback.
type UpdateComplaintRequest struct {
	Status       *ComplaintStatus `json:"status" validate:"omitempty,oneof=Pending Accepted 'On The Way' 'In Progress' Resolved Rejected"`
	AdminComment *string          `json:"admin_comment" validate:"omitempty,max=2000"`
	Feedback     *Feedback        `json:"feedback" validate:"omitempty,oneof=Satisfied Unsatisfied"`
}

// AssignComplaintRequest optionally names an explicit assignee (admins only).
type AssignComplaintRequest struct {
	AssigneeID string `json:"assignee_id" validate:"omitempty,uuid"`
}

// ComplaintMessageRequest appends a chat message.
type ComplaintMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// EmployeeLoad is an assignment candidate with its open workload.
type EmployeeLoad struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Load int    `db:"load" json:"load"`
}

// ComplaintFilter scopes complaint listings. StudentID limits to one
// student's tickets; EmployeeID limits to the staff pool plus that employee's
// assignments. Both empty lists everything.
type ComplaintFilter struct {
	StudentID  string
	EmployeeID string
}

// ComplaintPatch carries the fields changed by a status update.
type ComplaintPatch struct {
	Status       ComplaintStatus
	AdminComment *string
	Feedback     *Feedback
	IsVerified   *bool
}
