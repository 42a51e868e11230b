package identity

import (
	"time"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	PasswordHash   string    `json:"-"`
	Enabled        bool      `json:"enabled"`
	Phone          string    `json:"phone,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserView is the public projection of a User. It never carries credentials.
type UserView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Enabled        bool      `json:"enabled"`
	Phone          string    `json:"phone,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) ToView() UserView {
	return UserView{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Enabled:        u.Enabled,
		Phone:          u.Phone,
		Specialization: u.Specialization,
		CreatedAt:      u.CreatedAt,
	}
}

func ToViews(users []*User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToView())
	}
	return out
}

// Dosha values accepted on a patient record.
const (
	DoshaVata     = "Vata"
	DoshaPitta    = "Pitta"
	DoshaKapha    = "Kapha"
	DoshaTridosha = "Tridosha"
)

func ValidDosha(d string) bool {
	switch d {
	case "", DoshaVata, DoshaPitta, DoshaKapha, DoshaTridosha:
		return true
	}
	return false
}

type Patient struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id,omitempty"`
	Name                   string     `json:"name"`
	Age                    int        `json:"age"`
	Gender                 string     `json:"gender,omitempty"`
	Phone                  string     `json:"phone,omitempty"`
	Email                  string     `json:"email,omitempty"`
	Address                string     `json:"address,omitempty"`
	Dosha                  string     `json:"dosha,omitempty"`
	MedicalHistory         string     `json:"medical_history,omitempty"`
	AssignedDoctorID       string     `json:"assigned_doctor_id"`
	AssignedPractitionerID string     `json:"assigned_practitioner_id"`
	IsEmergency            bool       `json:"is_emergency"`
	CheckedInAt            *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// PatientFilter narrows patient listings. Empty fields match all.
type PatientFilter struct {
	DoctorID       string
	PractitionerID string
}
