package workflow_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/upload"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// outputChecker provides helpers for testing teatest output.
type outputChecker struct {
	intervl, timeout time.Duration
}

func defaultChecker() outputChecker {
	return outputChecker{
		intervl: 50 * time.Millisecond,
		timeout: 3 * time.Second,
	}
}

func (o outputChecker) checkString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	o.checkAll(t, tm, substr)
}

// checkAll waits until every substr has appeared in the output read by
// this call. Use it for text rendered in the same frame.
func (o outputChecker) checkAll(t *testing.T, tm *teatest.TestModel, substrs ...string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		for _, s := range substrs {
			if !bytes.Contains(buf, []byte(s)) {
				return false
			}
		}
		return true
	},
		teatest.WithCheckInterval(o.intervl),
		teatest.WithDuration(o.timeout))
}

// mockRecorder walks the session states the way the portal does.
type mockRecorder struct {
	mu        sync.Mutex
	appts     []recording.Appointment
	apptErr   error
	state     session.State
	elapsed   int
	startedID string
	saveErr   error
	saved     *recording.Record
	saves     int
	// steps are reported to the progress subscriber before gate is awaited.
	steps    []upload.Step
	gate     chan struct{}
	progress chan<- upload.Progress
}

func (m *mockRecorder) UpcomingAppointments(context.Context) ([]recording.Appointment, error) {
	return m.appts, m.apptErr
}

func (m *mockRecorder) StartRecording(_ context.Context, appointmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = session.StateRecording
	m.startedID = appointmentID
	m.elapsed = 12

	return nil
}

func (m *mockRecorder) PauseOrResumeRecording(context.Context) (session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == session.StateRecording {
		m.state = session.StatePaused
	} else {
		m.state = session.StateRecording
	}

	return m.state, nil
}

func (m *mockRecorder) SubscribeSaveProgress(ch chan<- upload.Progress) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress = ch

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.progress = nil
	}, nil
}

func (m *mockRecorder) StopAndSaveRecording(ctx context.Context) (*recording.Record, error) {
	m.mu.Lock()
	progress, steps, gate := m.progress, m.steps, m.gate
	m.mu.Unlock()

	for _, step := range steps {
		if progress != nil {
			progress <- upload.Progress{SagaID: "s1", Step: step}
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		m.state = session.StateFailed
		return nil, m.saveErr
	}
	m.state = session.StateIdle

	return m.saved, nil
}

func (m *mockRecorder) Snapshot() session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return session.Snapshot{State: m.state, ElapsedSeconds: m.elapsed}
}

func (m *mockRecorder) Started() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.startedID, m.saves
}

type mockLibrary struct {
	mu      sync.Mutex
	records []recording.Record
	state   playback.State
	saved   []string
}

func (m *mockLibrary) ListCatalog(context.Context) ([]recording.Record, error) {
	return m.records, nil
}

func (m *mockLibrary) TogglePlay(_ context.Context, rec recording.Record) (playback.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !rec.HasAudio() {
		return m.state, playback.ErrNotPlayable
	}

	if m.state.RecordingID == rec.ID {
		m.state.IsPlaying = !m.state.IsPlaying
	} else {
		m.state = playback.State{RecordingID: rec.ID, FileURL: rec.FileURL, IsPlaying: true, Progress: 0.25}
	}

	return m.state, nil
}

func (m *mockLibrary) PlaybackState() playback.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *mockLibrary) SaveRecording(_ context.Context, rec recording.Record, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, rec.ID)

	return dir + "/" + rec.ID + ".mp3", nil
}

func (m *mockLibrary) Saved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.saved...)
}
