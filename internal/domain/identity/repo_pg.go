package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

const pgUniqueViolation = "23505"

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const userCols = `id, email, name, role, password_hash, enabled, phone, specialization, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.Enabled,
		&u.Phone, &u.Specialization, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, enabled, phone, specialization)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.Enabled, u.Phone, u.Specialization,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperror.Conflict("email %s is already registered", u.Email)
	}
	return err
}

func (r *userRepoPG) get(ctx context.Context, where string, arg any, what string) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user", what)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", what, err)
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, "id = $1", id, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "lower(email) = lower($1)", email, email)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET name=$2, password_hash=$3, enabled=$4, phone=$5, specialization=$6, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.PasswordHash, u.Enabled, u.Phone, u.Specialization)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", u.ID)
	}
	return nil
}

func (r *userRepoPG) list(ctx context.Context, query string, args ...any) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepoPG) List(ctx context.Context, role string) ([]*User, error) {
	if role == "" {
		return r.list(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at, id`)
	}
	return r.list(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY created_at, id`, role)
}

func (r *userRepoPG) ListEnabledByRole(ctx context.Context, role string) ([]*User, error) {
	return r.list(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 AND enabled ORDER BY created_at, id`, role)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const patientCols = `id, user_id, name, age, gender, phone, email, address, dosha, medical_history,
	assigned_doctor_id, assigned_practitioner_id, is_emergency, checked_in_at, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.Email, &p.Address,
		&p.Dosha, &p.MedicalHistory, &p.AssignedDoctorID, &p.AssignedPractitionerID,
		&p.IsEmergency, &p.CheckedInAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, name, age, gender, phone, email, address, dosha, medical_history,
			assigned_doctor_id, assigned_practitioner_id, is_emergency, checked_in_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address, p.Dosha, p.MedicalHistory,
		p.AssignedDoctorID, p.AssignedPractitionerID, p.IsEmergency, p.CheckedInAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("patient", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET name=$2, age=$3, gender=$4, phone=$5, email=$6, address=$7, dosha=$8,
			medical_history=$9, assigned_doctor_id=$10, assigned_practitioner_id=$11,
			is_emergency=$12, checked_in_at=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address, p.Dosha,
		p.MedicalHistory, p.AssignedDoctorID, p.AssignedPractitionerID,
		p.IsEmergency, p.CheckedInAt,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("patient", p.ID)
	}
	return err
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE ($1 = '' OR assigned_doctor_id = $1) AND ($2 = '' OR assigned_practitioner_id = $2)
		ORDER BY created_at, id`, f.DoctorID, f.PractitionerID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) loads(ctx context.Context, column string) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+column+`, COUNT(*) FROM patients WHERE `+column+` <> '' GROUP BY `+column)
	if err != nil {
		return nil, fmt.Errorf("count patients by %s: %w", column, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (r *patientRepoPG) DoctorLoads(ctx context.Context) (map[string]int, error) {
	return r.loads(ctx, "assigned_doctor_id")
}

func (r *patientRepoPG) PractitionerLoads(ctx context.Context) (map[string]int, error) {
	return r.loads(ctx, "assigned_practitioner_id")
}
