// Package repository stores recording records and appointments for the
// portal backend.
package repository

import (
	"context"
	"time"

	"github.com/alkime/consults/internal/recording"
)

var (
	ErrNotFound         = recording.ErrNotFound
	ErrAlreadyCompleted = recording.ErrAlreadyCompleted
)

// Repository is the backend's durable store. Create always yields a
// processing record; Complete moves it to completed at most once.
type Repository interface {
	Create(ctx context.Context, req recording.CreateRequest) (*recording.Record, error)
	Complete(ctx context.Context, id string, c recording.Completion) (*recording.Record, error)
	SetTranscript(ctx context.Context, id, transcript string) (*recording.Record, error)
	Get(ctx context.Context, id string) (*recording.Record, error)
	// List returns records newest first.
	List(ctx context.Context) ([]recording.Record, error)
	// UpcomingAppointments returns appointments starting at or after from, soonest first.
	UpcomingAppointments(ctx context.Context, from time.Time) ([]recording.Appointment, error)
	Close()
}
