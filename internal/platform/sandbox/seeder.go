package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/therapy"
	"github.com/ayurclinic/clinic/internal/platform/audit"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/pkg/dates"
)

// SeedConfig controls the volume of generated demo data.
type SeedConfig struct {
	Doctors            int
	Practitioners      int
	Receptionists      int
	Patients           int
	SessionsPerTherapy int
	AdminEmail         string
	Password           string
	Seed               int64
}

// DefaultSeedConfig returns the demo clinic: an admin, two doctors, three
// practitioners, a receptionist and a handful of patients.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Doctors:            2,
		Practitioners:      3,
		Receptionists:      1,
		Patients:           6,
		SessionsPerTherapy: 4,
		AdminEmail:         "admin@clinic.local",
		Password:           "clinic-demo",
		Seed:               42,
	}
}

// SeedResult counts what a run created.
type SeedResult struct {
	Skipped   bool          `json:"skipped"`
	Users     int           `json:"users"`
	Patients  int           `json:"patients"`
	Therapies int           `json:"therapies"`
	Sessions  int           `json:"sessions"`
	Completed int           `json:"completed"`
	Duration  time.Duration `json:"duration"`
}

type IdentityService interface {
	ListUsers(ctx context.Context, role string) ([]*identity.User, error)
	CreateUser(ctx context.Context, in identity.CreateUserInput) (*identity.User, error)
	CreatePatient(ctx context.Context, p *identity.Patient) error
}

type TherapyService interface {
	CreateTherapy(ctx context.Context, in therapy.CreateInput) (*therapy.Therapy, error)
	RecordSession(ctx context.Context, therapyID string, in therapy.SessionInput, practitionerID string) (*therapy.Session, *therapy.Therapy, error)
}

// Seeder populates an empty clinic. A clinic that already has an admin is
// left alone.
type Seeder struct {
	identity  IdentityService
	therapies TherapyService
	generator *DataGenerator
	config    SeedConfig
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSeeder(ids IdentityService, therapies TherapyService, config SeedConfig) *Seeder {
	return &Seeder{
		identity:  ids,
		therapies: therapies,
		generator: NewDataGenerator(config.Seed),
		config:    config,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

func (s *Seeder) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("component", "seeder").Logger() }

// Run creates staff, then patients (each routed to the least-loaded doctor),
// then one therapy per patient with its sessions. Staff creation is
// attributed to the system account, clinical work to the assigned staff.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	admins, err := s.identity.ListUsers(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("check existing admins: %w", err)
	}
	if len(admins) > 0 {
		s.logger.Info().Str("admin", admins[0].Email).Msg("clinic already seeded, skipping")
		result.Skipped = true
		return result, nil
	}

	sysCtx := auth.WithIdentity(ctx, audit.SystemUserID, audit.SystemRole)
	admin, err := s.identity.CreateUser(sysCtx, identity.CreateUserInput{
		Email:    s.config.AdminEmail,
		Name:     "Clinic Administrator",
		Role:     auth.RoleAdmin,
		Password: s.config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	result.Users++

	adminCtx := auth.WithIdentity(ctx, admin.ID, auth.RoleAdmin)
	staff := []struct {
		role  string
		count int
	}{
		{auth.RoleDoctor, s.config.Doctors},
		{auth.RolePractitioner, s.config.Practitioners},
		{auth.RoleReception, s.config.Receptionists},
	}
	var reception *identity.User
	for _, group := range staff {
		for i := 0; i < group.count; i++ {
			u, err := s.identity.CreateUser(adminCtx, s.generator.Staff(group.role, s.config.Password))
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", group.role, err)
			}
			if reception == nil && group.role == auth.RoleReception {
				reception = u
			}
			result.Users++
		}
	}

	frontDesk := adminCtx
	if reception != nil {
		frontDesk = auth.WithIdentity(ctx, reception.ID, auth.RoleReception)
	}
	today := dates.Day(s.now())
	for i := 0; i < s.config.Patients; i++ {
		p := s.generator.Patient()
		if err := s.identity.CreatePatient(frontDesk, p); err != nil {
			return nil, fmt.Errorf("create patient %q: %w", p.Name, err)
		}
		result.Patients++

		doctorCtx := auth.WithIdentity(ctx, p.AssignedDoctorID, auth.RoleDoctor)
		t, err := s.therapies.CreateTherapy(doctorCtx, s.generator.Therapy(p.ID, today))
		if err != nil {
			return nil, fmt.Errorf("create therapy for %q: %w", p.Name, err)
		}
		result.Therapies++

		practCtx := auth.WithIdentity(ctx, t.PrimaryPractitionerID, auth.RolePractitioner)
		for _, in := range s.generator.Sessions(t.StartDate, s.config.SessionsPerTherapy) {
			_, updated, err := s.therapies.RecordSession(practCtx, t.ID, in, t.PrimaryPractitionerID)
			if err != nil {
				return nil, fmt.Errorf("record session for therapy %s: %w", t.ID, err)
			}
			t = updated
			result.Sessions++
		}
		if t.Status == therapy.StatusCompleted {
			result.Completed++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("users", result.Users).
		Int("patients", result.Patients).
		Int("therapies", result.Therapies).
		Int("sessions", result.Sessions).
		Dur("duration", result.Duration).
		Msg("demo data seeded")
	return result, nil
}
