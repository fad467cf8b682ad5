package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/tui/components/labeledspinner"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/alkime/consults/internal/upload"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type savedMsg struct {
	rec *recording.Record
	err error
}

type saveProgressMsg upload.Progress

// saveSteps index matches the order the upload saga runs its steps.
var saveSteps = []upload.Step{upload.StepCreate, upload.StepUpload, upload.StepPatch}

// savingPhase stops the session and runs the upload as soon as it becomes
// current, showing each saga step until the outcome is known.
type savingPhase struct {
	ctx         context.Context
	recorder    Recorder
	spinner     labeledspinner.Model
	progress    chan upload.Progress
	unsubscribe func()
	done        bool
	rec         *recording.Record
	err         error
}

func NewSaving(ctx context.Context, recorder Recorder) tea.Model {
	return &savingPhase{
		ctx:      ctx,
		recorder: recorder,
		spinner: labeledspinner.New(spinner.Dot,
			"Saving consultation",
			"",
			"Please keep the app open until the upload finishes").
			WithSteps("Creating the record", "Uploading the audio", "Completing the record"),
	}
}

func (s *savingPhase) Init() tea.Cmd {
	cmds := []tea.Cmd{s.spinner.Init()}

	s.progress = make(chan upload.Progress, len(saveSteps)+1)
	if unsubscribe, err := s.recorder.SubscribeSaveProgress(s.progress); err == nil {
		s.unsubscribe = unsubscribe
		cmds = append(cmds, s.waitProgress())
	}

	cmds = append(cmds, func() tea.Msg {
		rec, err := s.recorder.StopAndSaveRecording(s.ctx)
		return savedMsg{rec: rec, err: err}
	})

	return tea.Batch(cmds...)
}

func (s *savingPhase) waitProgress() tea.Cmd {
	ch := s.progress

	return func() tea.Msg {
		select {
		case p, ok := <-ch:
			if !ok {
				return nil
			}
			return saveProgressMsg(p)
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *savingPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case saveProgressMsg:
		if s.done {
			return s, nil
		}
		current := len(saveSteps)
		for i, step := range saveSteps {
			if step == msg.Step {
				current = i
			}
		}
		s.spinner = s.spinner.WithCurrent(current)

		return s, s.waitProgress()

	case savedMsg:
		s.done = true
		s.rec, s.err = msg.rec, msg.err
		if s.unsubscribe != nil {
			s.unsubscribe()
			s.unsubscribe = nil
			close(s.progress)
		}

		return s, nil

	case spinner.TickMsg:
		if s.done {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *savingPhase) View() string {
	if !s.done {
		return s.spinner.View()
	}

	var sb strings.Builder

	if s.err != nil {
		sb.WriteString(style.Error.Render("✗ Save failed"))
		sb.WriteString("\n\n")
		sb.WriteString(explainSaveError(s.err))
		sb.WriteString("\n")
		sb.WriteString(style.Muted.Render(s.err.Error()))
		sb.WriteString("\n\n")
		sb.WriteString(renderGlobalKeyHelp())

		return sb.String()
	}

	d := catalog.Present(*s.rec)

	sb.WriteString(style.Success.Render("✓ Consultation saved"))
	sb.WriteString("\n\n")
	sb.WriteString(style.Label.Render("Title: "))
	sb.WriteString(d.Title)
	sb.WriteString("\n")
	sb.WriteString(style.Label.Render("Duration: "))
	sb.WriteString(d.Duration)
	sb.WriteString("\n")
	sb.WriteString(style.Label.Render("Size: "))
	sb.WriteString(d.Size)
	sb.WriteString("\n\n")
	sb.WriteString(renderGlobalKeyHelp())

	return sb.String()
}

func explainSaveError(err error) string {
	switch {
	case errors.Is(err, upload.ErrEmptyRecording):
		return "Nothing was captured, so nothing was saved."
	case errors.Is(err, upload.ErrRecordCreationFailed):
		return "The backend could not create the record. The audio is kept locally; run `consult retry` to try again."
	case errors.Is(err, upload.ErrUploadFailed):
		return "The record exists but the audio did not reach storage. Run `consult retry` to finish it without creating a duplicate."
	case errors.Is(err, upload.ErrPatchFailed):
		return "The audio is stored but the record was not completed. Run `consult retry` to finish it."
	default:
		return "The recording could not be saved."
	}
}
