package notification

import "time"

// Kinds of in-app notification. Each kind has a built-in template.
const (
	KindTherapyAssigned        = "therapy_assigned"
	KindTherapyCompleted       = "therapy_completed"
	KindTherapyReassigned      = "therapy_reassigned"
	KindPatientReassigned      = "patient_reassigned"
	KindLeaveRequested         = "leave_requested"
	KindLeaveApproved          = "leave_approved"
	KindLeaveRejected          = "leave_rejected"
	KindEmergencyCoverRequired = "emergency_cover_required"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
