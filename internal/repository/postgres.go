package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alkime/consults/internal/recording"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the recordings and appointments tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	doctor_name TEXT NOT NULL,
	specialty TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	starts_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_starts_at ON appointments(starts_at);
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	appointment_id TEXT,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	file_size_bytes BIGINT NOT NULL DEFAULT 0,
	file_url TEXT,
	transcript TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT recordings_file_matches_status CHECK (
		(status = 'completed' AND file_url IS NOT NULL AND file_size_bytes > 0) OR
		(status = 'processing' AND file_url IS NULL)
	)
);
CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at DESC);`

	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

// Postgres is the pgx-backed Repository.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const recordColumns = `id, title, status, COALESCE(appointment_id, ''), duration_seconds,
	file_size_bytes, COALESCE(file_url, ''), COALESCE(transcript, ''), created_at, updated_at`

func (p *Postgres) Create(ctx context.Context, req recording.CreateRequest) (*recording.Record, error) {
	now := time.Now().UTC()
	rec := recording.Record{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Status:          recording.StatusProcessing,
		AppointmentID:   req.AppointmentID,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO recordings (id, title, status, appointment_id, duration_seconds, created_at, updated_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7)
	`, rec.ID, rec.Title, rec.Status, rec.AppointmentID, rec.DurationSeconds, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	return &rec, nil
}

// Complete runs in a transaction with the row locked so concurrent patches
// cannot both succeed.
func (p *Postgres) Complete(ctx context.Context, id string, c recording.Completion) (*recording.Record, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM recordings WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if rec.Status == recording.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	next, err := complete(*rec, c, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE recordings
		SET status=$1, file_url=$2, file_size_bytes=$3, duration_seconds=$4, updated_at=$5
		WHERE id=$6
	`, next.Status, next.FileURL, next.FileSizeBytes, next.DurationSeconds, next.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update recording: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &next, nil
}

func (p *Postgres) SetTranscript(ctx context.Context, id, transcript string) (*recording.Record, error) {
	tag, err := p.pool.Exec(ctx, `UPDATE recordings SET transcript=$1, updated_at=$2 WHERE id=$3`,
		transcript, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update transcript: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return p.Get(ctx, id)
}

func (p *Postgres) Get(ctx context.Context, id string) (*recording.Record, error) {
	return scanRecord(p.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM recordings WHERE id=$1`, id))
}

func (p *Postgres) List(ctx context.Context) ([]recording.Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+recordColumns+` FROM recordings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []recording.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	return out, nil
}

func (p *Postgres) UpcomingAppointments(ctx context.Context, from time.Time) ([]recording.Appointment, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, doctor_name, specialty, patient_name, starts_at
		FROM appointments WHERE starts_at >= $1 ORDER BY starts_at
	`, from)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []recording.Appointment
	for rows.Next() {
		var a recording.Appointment
		if err := rows.Scan(&a.ID, &a.DoctorName, &a.Specialty, &a.PatientName, &a.StartsAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// AddAppointment upserts an appointment.
func (p *Postgres) AddAppointment(ctx context.Context, a recording.Appointment) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO appointments (id, doctor_name, specialty, patient_name, starts_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET doctor_name=$2, specialty=$3, patient_name=$4, starts_at=$5
	`, a.ID, a.DoctorName, a.Specialty, a.PatientName, a.StartsAt)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}

	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func scanRecord(row pgx.Row) (*recording.Record, error) {
	var rec recording.Record
	err := row.Scan(&rec.ID, &rec.Title, &rec.Status, &rec.AppointmentID, &rec.DurationSeconds,
		&rec.FileSizeBytes, &rec.FileURL, &rec.Transcript, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recording: %w", err)
	}

	return &rec, nil
}
