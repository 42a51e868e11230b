package therapy

import "time"

// Therapy lifecycle states. COMPLETED and CANCELLED are terminal.
const (
	StatusScheduled = "SCHEDULED"
	StatusOngoing   = "ONGOING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether status still accepts sessions and reassignment.
func Active(status string) bool {
	return status == StatusScheduled || status == StatusOngoing
}

type Therapy struct {
	ID                    string     `json:"id"`
	PatientID             string     `json:"patient_id"`
	DoctorID              string     `json:"doctor_id"`
	PrimaryPractitionerID string     `json:"primary_practitioner_id"`
	Type                  string     `json:"type"`
	Phase                 string     `json:"phase,omitempty"`
	StartDate             time.Time  `json:"start_date"`
	DurationDays          int        `json:"duration_days"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	Room                  string     `json:"room,omitempty"`
	Herbs                 []string   `json:"herbs"`
	Status                string     `json:"status"`
	Notes                 string     `json:"notes,omitempty"`
	ProgressPercent       int        `json:"progress_percent"`
	Sessions              []string   `json:"sessions"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Vitals recorded at a session. Any field may be absent.
type Vitals struct {
	Pulse         *int     `json:"pulse,omitempty"`
	BloodPressure string   `json:"blood_pressure,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Session struct {
	ID              string       `json:"id"`
	TherapyID       string       `json:"therapy_id"`
	PatientID       string       `json:"patient_id"`
	Date            time.Time    `json:"date"`
	PractitionerID  string       `json:"practitioner_id"`
	Notes           string       `json:"notes,omitempty"`
	ProgressPercent int          `json:"progress_percent"`
	Attended        bool         `json:"attended"`
	Vitals          *Vitals      `json:"vitals,omitempty"`
	Attachments     []Attachment `json:"attachments"`
	Symptoms        []string     `json:"symptoms"`
	CreatedAt       time.Time    `json:"created_at"`
}

// SessionInput is what a practitioner submits for a visit. Progress
// defaults to 0 and attendance to true.
type SessionInput struct {
	Date            *time.Time   `json:"date"`
	Notes           string       `json:"notes"`
	ProgressPercent *int         `json:"progress_percent"`
	Attended        *bool        `json:"attended"`
	Vitals          *Vitals      `json:"vitals"`
	Attachments     []Attachment `json:"attachments"`
	Symptoms        []string     `json:"symptoms"`
}

// Filter narrows therapy listings. Empty fields match all.
type Filter struct {
	PatientID      string
	PractitionerID string
	DoctorID       string
	Status         string
}

func (f Filter) Matches(t *Therapy) bool {
	return (f.PatientID == "" || t.PatientID == f.PatientID) &&
		(f.PractitionerID == "" || t.PrimaryPractitionerID == f.PractitionerID) &&
		(f.DoctorID == "" || t.DoctorID == f.DoctorID) &&
		(f.Status == "" || t.Status == f.Status)
}
