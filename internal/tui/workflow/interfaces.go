// Package workflow implements the consult TUI screens: appointment picker,
// recording, saving, and the recordings library.
package workflow

import (
	"context"

	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/upload"
)

// Recorder drives a recording session and its finalize.
type Recorder interface {
	UpcomingAppointments(ctx context.Context) ([]recording.Appointment, error)
	StartRecording(ctx context.Context, appointmentID string) error
	PauseOrResumeRecording(ctx context.Context) (session.State, error)
	StopAndSaveRecording(ctx context.Context) (*recording.Record, error)
	// SubscribeSaveProgress delivers the upload step being worked on.
	SubscribeSaveProgress(ch chan<- upload.Progress) (func(), error)
	Snapshot() session.Snapshot
}

// Library lists, plays, and downloads stored recordings.
type Library interface {
	ListCatalog(ctx context.Context) ([]recording.Record, error)
	TogglePlay(ctx context.Context, rec recording.Record) (playback.State, error)
	PlaybackState() playback.State
	SaveRecording(ctx context.Context, rec recording.Record, dir string) (string, error)
}

// Selection is the appointment a recording is linked to, shared between
// the picker and the recording screen.
type Selection struct {
	AppointmentID string
	Label         string
}
