package staffing

import (
	"time"

	"github.com/ayurclinic/clinic/internal/domain/identity"
)

// Leave review states.
const (
	LeavePending  = "PENDING"
	LeaveApproved = "APPROVED"
	LeaveRejected = "REJECTED"
)

func ValidLeaveStatus(s string) bool {
	return s == LeavePending || s == LeaveApproved || s == LeaveRejected
}

// Leave is an absence over the inclusive civil-date range [FromDate, ToDate].
// Dates are midnight UTC.
type Leave struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	UserRole               string     `json:"user_role"`
	FromDate               time.Time  `json:"from_date"`
	ToDate                 time.Time  `json:"to_date"`
	Reason                 string     `json:"reason,omitempty"`
	Status                 string     `json:"status"`
	EmergencyCoverRequired bool       `json:"emergency_cover_required"`
	ReviewedBy             string     `json:"reviewed_by,omitempty"`
	ReviewedAt             *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Overlaps reports whether the leave intersects [start, end].
func (l *Leave) Overlaps(start, end time.Time) bool {
	return !l.ToDate.Before(start) && !l.FromDate.After(end)
}

type LeaveFilter struct {
	UserID string
	Status string
}

// Reassigned records one patient moved off a practitioner on leave.
type Reassigned struct {
	PatientID         string `json:"patient_id"`
	OldPractitionerID string `json:"old_practitioner_id"`
	NewPractitionerID string `json:"new_practitioner_id"`
	TherapiesMoved    int    `json:"therapies_moved"`
}

type Reassignment struct {
	Reassigned []Reassigned `json:"reassigned"`
}

// StaffLoad is a staff member annotated with their current patient count.
type StaffLoad struct {
	identity.UserView
	Load int `json:"load"`
}

type Roster struct {
	Date                   string      `json:"date"`
	AvailableDoctors       []StaffLoad `json:"available_doctors"`
	AvailablePractitioners []StaffLoad `json:"available_practitioners"`
}

type Availability struct {
	PractitionerID    string   `json:"practitioner_id"`
	Name              string   `json:"name"`
	Available         bool     `json:"available"`
	ConflictingLeaves []*Leave `json:"conflicting_leaves"`
}

// LeaveDecision is the outcome of approving a leave. When the follow-up
// reassignment could not run, the approval still stands and the reason is
// carried in ReassignmentError.
type LeaveDecision struct {
	Leave             *Leave        `json:"leave"`
	Reassignment      *Reassignment `json:"reassignment,omitempty"`
	ReassignmentError string        `json:"reassignment_error,omitempty"`
}
