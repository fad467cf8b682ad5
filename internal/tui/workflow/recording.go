package workflow

import (
	"context"
	"strings"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/tui/components/levelmeter"
	"github.com/alkime/consults/internal/tui/components/phases"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/alkime/consults/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type recordingKeyMap struct {
	Toggle key.Binding
	Finish key.Binding
	Back   key.Binding
}

func defaultRecordingKeyMap() recordingKeyMap {
	return recordingKeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start/pause/resume"),
		),
		Finish: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "stop and save"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "change appointment"),
		),
	}
}

type recordingActionMsg struct {
	err error
}

// recordingPhase drives one session: space starts it and then toggles
// pause, enter hands over to the saving phase.
type recordingPhase struct {
	ctx      context.Context
	keys     recordingKeyMap
	recorder Recorder
	sel      *Selection
	spinner  spinner.Model
	meter    levelmeter.Model
	snap     session.Snapshot
	err      error
	// backable is set when an appointment picker precedes this phase.
	backable bool
}

func NewRecording(ctx context.Context, recorder Recorder, sel *Selection, levels uictl.Levels[int16]) tea.Model {
	return newRecordingPhase(ctx, recorder, sel, levels)
}

func newRecordingPhase(ctx context.Context, recorder Recorder, sel *Selection, levels uictl.Levels[int16]) *recordingPhase {
	s := spinner.New()
	s.Spinner = spinner.Points

	return &recordingPhase{
		ctx:      ctx,
		keys:     defaultRecordingKeyMap(),
		recorder: recorder,
		sel:      sel,
		spinner:  s,
		meter:    levelmeter.New(levels, 48, 2),
		snap:     recorder.Snapshot(),
	}
}

func (r *recordingPhase) Init() tea.Cmd {
	return tea.Batch(r.spinner.Tick, r.meter.Init(), pollCmd())
}

func (r *recordingPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, r.keys.Toggle):
			return r, r.toggle()
		case key.Matches(msg, r.keys.Back):
			if r.canGoBack() {
				r.err = nil
				return r, phases.PrevPhaseCmd
			}
		case key.Matches(msg, r.keys.Finish):
			if r.snap.State == session.StateRecording || r.snap.State == session.StatePaused {
				return r, phases.NextPhaseCmd
			}
		}

	case recordingActionMsg:
		r.err = msg.err
		r.snap = r.recorder.Snapshot()

	case pollMsg:
		r.snap = r.recorder.Snapshot()
		return r, pollCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spinner, cmd = r.spinner.Update(msg)
		return r, cmd

	case levelmeter.TickMsg:
		var cmd tea.Cmd
		r.meter, cmd = r.meter.Update(msg)
		return r, cmd
	}

	return r, nil
}

func (r *recordingPhase) canGoBack() bool {
	return r.backable && (r.snap.State == session.StateIdle || r.snap.State == session.StateFailed)
}

func (r *recordingPhase) toggle() tea.Cmd {
	state := r.snap.State
	appointmentID := r.sel.AppointmentID

	return func() tea.Msg {
		switch state {
		case session.StateIdle, session.StateFailed:
			return recordingActionMsg{err: r.recorder.StartRecording(r.ctx, appointmentID)}
		case session.StateRecording, session.StatePaused:
			_, err := r.recorder.PauseOrResumeRecording(r.ctx)
			return recordingActionMsg{err: err}
		default:
			return nil
		}
	}
}

func (r *recordingPhase) View() string {
	var sb strings.Builder

	elapsed := style.Subtitle.Render(catalog.FormatDuration(r.snap.ElapsedSeconds))

	switch r.snap.State {
	case session.StateRecording:
		sb.WriteString(r.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Title.Render("Recording"))
		sb.WriteString(" ")
		sb.WriteString(elapsed)
	case session.StatePaused:
		sb.WriteString(style.Warning.Render("Paused"))
		sb.WriteString(" ")
		sb.WriteString(elapsed)
	case session.StateFailed:
		sb.WriteString(style.Error.Render("Recording failed"))
		if r.snap.Err != nil {
			sb.WriteString(style.Muted.Render(": " + r.snap.Err.Error()))
		}
	default:
		sb.WriteString(style.Subtitle.Render("Press space to start recording"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(style.Label.Render("Appointment: "))
	if r.sel.Label != "" {
		sb.WriteString(r.sel.Label)
	} else if r.sel.AppointmentID != "" {
		sb.WriteString(r.sel.AppointmentID)
	} else {
		sb.WriteString(style.Muted.Render("none"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(r.meter.View())
	sb.WriteString("\n\n")

	if r.err != nil {
		sb.WriteString(style.Error.Render(r.err.Error()))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(r.keys.Toggle, " "))
	sb.WriteString(renderKeyHelp(r.keys.Finish, " "))
	if r.canGoBack() {
		sb.WriteString(renderKeyHelp(r.keys.Back, " "))
	}
	sb.WriteString("\n")
	sb.WriteString(renderGlobalKeyHelp())

	return sb.String()
}
