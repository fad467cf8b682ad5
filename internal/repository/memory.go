package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alkime/consults/internal/recording"
	"github.com/google/uuid"
)

// Memory keeps records in process. Suitable for development and tests.
type Memory struct {
	mu           sync.RWMutex
	records      map[string]recording.Record
	appointments []recording.Appointment
	now          func() time.Time
}

var _ Repository = (*Memory)(nil)

func NewMemory(appointments ...recording.Appointment) *Memory {
	return &Memory{
		records:      make(map[string]recording.Record),
		appointments: slices.Clone(appointments),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Create(_ context.Context, req recording.CreateRequest) (*recording.Record, error) {
	now := m.now()
	rec := recording.Record{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Status:          recording.StatusProcessing,
		AppointmentID:   req.AppointmentID,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.ID] = rec

	return &rec, nil
}

func (m *Memory) Complete(_ context.Context, id string, c recording.Completion) (*recording.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	if rec.Status == recording.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	next, err := complete(rec, c, m.now())
	if err != nil {
		return nil, err
	}
	m.records[id] = next

	return &next, nil
}

func (m *Memory) SetTranscript(_ context.Context, id, transcript string) (*recording.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	rec.Transcript = transcript
	rec.UpdatedAt = m.now()
	m.records[id] = rec

	return &rec, nil
}

func (m *Memory) Get(_ context.Context, id string) (*recording.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &rec, nil
}

func (m *Memory) List(_ context.Context) ([]recording.Record, error) {
	m.mu.RLock()
	out := make([]recording.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b recording.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	return out, nil
}

func (m *Memory) UpcomingAppointments(_ context.Context, from time.Time) ([]recording.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recording.Appointment
	for _, a := range m.appointments {
		if !a.StartsAt.Before(from) {
			out = append(out, a)
		}
	}

	slices.SortFunc(out, func(a, b recording.Appointment) int { return a.StartsAt.Compare(b.StartsAt) })

	return out, nil
}

// AddAppointment registers an appointment.
func (m *Memory) AddAppointment(a recording.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appointments = append(m.appointments, a)
}

func (m *Memory) Close() {}

// complete applies c to a processing record and checks the result.
func complete(rec recording.Record, c recording.Completion, now time.Time) (recording.Record, error) {
	rec.Status = c.Status
	rec.FileURL = c.FileURL
	rec.FileSizeBytes = c.FileSizeBytes
	rec.DurationSeconds = c.DurationSeconds
	rec.UpdatedAt = now

	if err := rec.Validate(); err != nil {
		return recording.Record{}, &ValidationError{Err: err}
	}

	return rec, nil
}

// ValidationError reports a write that would break a record invariant.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid recording: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }
