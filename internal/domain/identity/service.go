package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/auth"
)

// Auditor appends an entry attributed to the caller on ctx.
type Auditor interface {
	Record(ctx context.Context, action, resourceID string, details map[string]any)
}

// DoctorAssigner picks the doctor a new or emergency patient is routed to.
type DoctorAssigner interface {
	AssignDoctorByLoad(ctx context.Context, isEmergency bool) (*User, error)
}

type Service struct {
	users    UserRepository
	patients PatientRepository
	audit    Auditor
	tokens   *auth.TokenIssuer
	doctors  DoctorAssigner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(users UserRepository, patients PatientRepository, audit Auditor, tokens *auth.TokenIssuer) *Service {
	return &Service{
		users:    users,
		patients: patients,
		audit:    audit,
		tokens:   tokens,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// SetDoctorAssigner wires the assignment engine. It is set after
// construction because the engine itself reads this package's repositories.
func (s *Service) SetDoctorAssigner(a DoctorAssigner) { s.doctors = a }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("component", "identity").Logger() }

// -- Users --

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", apperror.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.Enabled || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid credentials", apperror.ErrUnauthorized)
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u.ToView()}, nil
}

type CreateUserInput struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, apperror.Invalid("a valid email is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperror.Invalid("name is required")
	}
	if !auth.ValidRole(in.Role) {
		return nil, apperror.Invalid("unknown role %q", in.Role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Invalid("%s", err.Error())
	}

	u := &User{
		ID:             uuid.New().String(),
		Email:          in.Email,
		Name:           strings.TrimSpace(in.Name),
		Role:           in.Role,
		PasswordHash:   hash,
		Enabled:        true,
		Phone:          in.Phone,
		Specialization: in.Specialization,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "CREATE_USER", u.ID, map[string]any{"email": u.Email, "role": u.Role})
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role string) ([]*User, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, apperror.Invalid("unknown role %q", role)
	}
	return s.users.List(ctx, role)
}

func (s *Service) SetUserEnabled(ctx context.Context, id string, enabled bool) (*User, error) {
	if !enabled && id == auth.UserIDFromContext(ctx) {
		return nil, apperror.Conflict("cannot disable your own account")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Enabled == enabled {
		return u, nil
	}
	u.Enabled = enabled
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "UPDATE_USER_STATUS", u.ID, map[string]any{"enabled": enabled})
	return u, nil
}

// -- Patients --

func validatePatient(p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.Invalid("name is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return apperror.Invalid("age must be between 0 and 150")
	}
	if !ValidDosha(p.Dosha) {
		return apperror.Invalid("dosha must be one of Vata, Pitta, Kapha, Tridosha")
	}
	return nil
}

// requireStaff checks that id names an enabled user with role.
func (s *Service) requireStaff(ctx context.Context, id, role string) error {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Invalid("%s %s does not exist", role, id)
	}
	if err != nil {
		return err
	}
	if u.Role != role || !u.Enabled {
		return apperror.Invalid("user %s is not an enabled %s", id, role)
	}
	return nil
}

// CreatePatient registers a patient. Without an explicit doctor the patient
// is routed by load, or to the senior doctor when flagged as an emergency;
// when no doctor is available nothing is written.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}

	autoAssigned := false
	if p.AssignedDoctorID == "" {
		if s.doctors == nil {
			return apperror.Invalid("assigned_doctor_id is required")
		}
		doc, err := s.doctors.AssignDoctorByLoad(ctx, p.IsEmergency)
		if err != nil {
			return err
		}
		p.AssignedDoctorID = doc.ID
		autoAssigned = true
	} else if err := s.requireStaff(ctx, p.AssignedDoctorID, auth.RoleDoctor); err != nil {
		return err
	}
	if p.AssignedPractitionerID != "" {
		if err := s.requireStaff(ctx, p.AssignedPractitionerID, auth.RolePractitioner); err != nil {
			return err
		}
	}

	p.ID = uuid.New().String()
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.audit.Record(ctx, "CREATE_PATIENT", p.ID, map[string]any{
		"assigned_doctor_id": p.AssignedDoctorID,
		"auto_assigned":      autoAssigned,
		"is_emergency":       p.IsEmergency,
	})
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]*Patient, error) {
	return s.patients.List(ctx, f)
}

// PatientUpdate carries the demographic fields a patient record may change.
// Assignments change only through the assignment engine and check-in.
type PatientUpdate struct {
	Name           *string `json:"name"`
	Age            *int    `json:"age"`
	Gender         *string `json:"gender"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	Address        *string `json:"address"`
	Dosha          *string `json:"dosha"`
	MedicalHistory *string `json:"medical_history"`
}

func (s *Service) UpdatePatient(ctx context.Context, id string, in PatientUpdate) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	setStr := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			*dst = *v
			changed = append(changed, field)
		}
	}
	setStr("name", &p.Name, in.Name)
	setStr("gender", &p.Gender, in.Gender)
	setStr("phone", &p.Phone, in.Phone)
	setStr("email", &p.Email, in.Email)
	setStr("address", &p.Address, in.Address)
	setStr("dosha", &p.Dosha, in.Dosha)
	setStr("medical_history", &p.MedicalHistory, in.MedicalHistory)
	if in.Age != nil && *in.Age != p.Age {
		p.Age = *in.Age
		changed = append(changed, "age")
	}
	if len(changed) == 0 {
		return p, nil
	}
	if err := validatePatient(p); err != nil {
		return nil, err
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "UPDATE_PATIENT", p.ID, map[string]any{"fields": changed})
	return p, nil
}

// CheckInPatient stamps the arrival time. A patient newly flagged as an
// emergency is routed to the senior doctor.
func (s *Service) CheckInPatient(ctx context.Context, id string, isEmergency bool) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rerouted := false
	if isEmergency && !p.IsEmergency {
		if s.doctors == nil {
			return nil, fmt.Errorf("%w: no assignment engine configured", apperror.ErrUnavailable)
		}
		doc, err := s.doctors.AssignDoctorByLoad(ctx, true)
		if err != nil {
			return nil, err
		}
		rerouted = doc.ID != p.AssignedDoctorID
		p.AssignedDoctorID = doc.ID
		p.IsEmergency = true
	}
	now := s.now().UTC()
	p.CheckedInAt = &now

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	if rerouted {
		s.logger.Info().Str("patient_id", p.ID).Str("doctor_id", p.AssignedDoctorID).Msg("emergency patient routed to senior doctor")
	}
	s.audit.Record(ctx, "CHECK_IN_PATIENT", p.ID, map[string]any{
		"is_emergency":       p.IsEmergency,
		"assigned_doctor_id": p.AssignedDoctorID,
		"rerouted":           rerouted,
	})
	return p, nil
}
