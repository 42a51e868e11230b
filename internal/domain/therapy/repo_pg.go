package therapy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

// =========== Therapy Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const therapyCols = `id, patient_id, doctor_id, primary_practitioner_id, type, phase, start_date,
	duration_days, end_date, room, herbs, status, notes, progress_percent, created_at, updated_at`

func (r *repoPG) scanTherapy(row pgx.Row) (*Therapy, error) {
	var t Therapy
	var herbs []byte
	err := row.Scan(&t.ID, &t.PatientID, &t.DoctorID, &t.PrimaryPractitionerID, &t.Type, &t.Phase,
		&t.StartDate, &t.DurationDays, &t.EndDate, &t.Room, &herbs, &t.Status, &t.Notes,
		&t.ProgressPercent, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(herbs, &t.Herbs); err != nil {
		return nil, fmt.Errorf("decode herbs of therapy %s: %w", t.ID, err)
	}
	return &t, nil
}

func encodeList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func (r *repoPG) Create(ctx context.Context, t *Therapy) error {
	herbs, err := encodeList(t.Herbs)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO therapies (id, patient_id, doctor_id, primary_practitioner_id, type, phase, start_date,
			duration_days, end_date, room, herbs, status, notes, progress_percent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.DoctorID, t.PrimaryPractitionerID, t.Type, t.Phase, t.StartDate,
		t.DurationDays, t.EndDate, t.Room, herbs, t.Status, t.Notes, t.ProgressPercent,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) get(ctx context.Context, id, suffix string) (*Therapy, error) {
	t, err := r.scanTherapy(r.conn(ctx).QueryRow(ctx, `SELECT `+therapyCols+` FROM therapies WHERE id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("therapy", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get therapy %s: %w", id, err)
	}
	return t, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Therapy, error) {
	return r.get(ctx, id, "")
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Therapy, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repoPG) Update(ctx context.Context, t *Therapy) error {
	herbs, err := encodeList(t.Herbs)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE therapies SET primary_practitioner_id=$2, phase=$3, end_date=$4, room=$5, herbs=$6,
			status=$7, notes=$8, progress_percent=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.PrimaryPractitionerID, t.Phase, t.EndDate, t.Room, herbs,
		t.Status, t.Notes, t.ProgressPercent,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("therapy", t.ID)
	}
	if err != nil {
		return fmt.Errorf("update therapy %s: %w", t.ID, err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Therapy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+therapyCols+` FROM therapies
		WHERE ($1 = '' OR patient_id = $1) AND ($2 = '' OR primary_practitioner_id = $2)
			AND ($3 = '' OR doctor_id = $3) AND ($4 = '' OR status = $4)
		ORDER BY created_at, id`, f.PatientID, f.PractitionerID, f.DoctorID, f.Status)
	if err != nil {
		return nil, fmt.Errorf("list therapies: %w", err)
	}
	defer rows.Close()
	var out []*Therapy
	for rows.Next() {
		t, err := r.scanTherapy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan therapy: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) ReassignActive(ctx context.Context, patientID, from, to string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE therapies SET primary_practitioner_id = $3, updated_at = NOW()
		WHERE patient_id = $1 AND primary_practitioner_id = $2 AND status IN ('SCHEDULED', 'ONGOING')`,
		patientID, from, to)
	if err != nil {
		return 0, fmt.Errorf("reassign therapies of patient %s: %w", patientID, err)
	}
	return int(tag.RowsAffected()), nil
}

// =========== Session Repository ===========

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository { return &sessionRepoPG{pool: pool} }

func (r *sessionRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	var vitals []byte
	if s.Vitals != nil {
		b, err := json.Marshal(s.Vitals)
		if err != nil {
			return err
		}
		vitals = b
	}
	attachments, err := encodeList(s.Attachments)
	if err != nil {
		return err
	}
	symptoms, err := encodeList(s.Symptoms)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sessions (id, therapy_id, patient_id, date, practitioner_id, notes, progress_percent,
			attended, vitals, attachments, symptoms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		s.ID, s.TherapyID, s.PatientID, s.Date, s.PractitionerID, s.Notes, s.ProgressPercent,
		s.Attended, vitals, attachments, symptoms,
	).Scan(&s.CreatedAt)
}

func (r *sessionRepoPG) ListByTherapy(ctx context.Context, therapyID string) ([]*Session, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, therapy_id, patient_id, date, practitioner_id, notes, progress_percent, attended,
			vitals, attachments, symptoms, created_at
		FROM sessions WHERE therapy_id = $1
		ORDER BY created_at, id`, therapyID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of therapy %s: %w", therapyID, err)
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var s Session
		var vitals, attachments, symptoms []byte
		if err := rows.Scan(&s.ID, &s.TherapyID, &s.PatientID, &s.Date, &s.PractitionerID, &s.Notes,
			&s.ProgressPercent, &s.Attended, &vitals, &attachments, &symptoms, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if len(vitals) > 0 {
			s.Vitals = &Vitals{}
			if err := json.Unmarshal(vitals, s.Vitals); err != nil {
				return nil, fmt.Errorf("decode vitals of session %s: %w", s.ID, err)
			}
		}
		if err := json.Unmarshal(attachments, &s.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of session %s: %w", s.ID, err)
		}
		if err := json.Unmarshal(symptoms, &s.Symptoms); err != nil {
			return nil, fmt.Errorf("decode symptoms of session %s: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
