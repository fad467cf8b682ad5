package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/tui/components/phases"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type appointmentsKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Skip   key.Binding
}

func defaultAppointmentsKeyMap() appointmentsKeyMap {
	return appointmentsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
	}
}

type appointmentsLoadedMsg struct {
	appts []recording.Appointment
	err   error
}

// appointmentsPhase lets the user link the recording to an upcoming
// appointment. The last row is always "No appointment".
type appointmentsPhase struct {
	ctx      context.Context
	keys     appointmentsKeyMap
	recorder Recorder
	sel      *Selection
	appts    []recording.Appointment
	cursor   int
	loading  bool
	err      error
}

func NewAppointments(ctx context.Context, recorder Recorder, sel *Selection) tea.Model {
	return &appointmentsPhase{
		ctx:      ctx,
		keys:     defaultAppointmentsKeyMap(),
		recorder: recorder,
		sel:      sel,
		loading:  true,
	}
}

func (a *appointmentsPhase) Init() tea.Cmd {
	return func() tea.Msg {
		appts, err := a.recorder.UpcomingAppointments(a.ctx)
		return appointmentsLoadedMsg{appts: appts, err: err}
	}
}

func (a *appointmentsPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case appointmentsLoadedMsg:
		a.loading = false
		a.appts, a.err = msg.appts, msg.err
		a.cursor = 0

	case tea.KeyMsg:
		if a.loading {
			return a, nil
		}

		switch {
		case key.Matches(msg, a.keys.Up):
			a.cursor = max(a.cursor-1, 0)
		case key.Matches(msg, a.keys.Down):
			a.cursor = min(a.cursor+1, len(a.appts))
		case key.Matches(msg, a.keys.Skip):
			*a.sel = Selection{}
			return a, phases.NextPhaseCmd
		case key.Matches(msg, a.keys.Select):
			*a.sel = Selection{}
			if a.cursor < len(a.appts) {
				appt := a.appts[a.cursor]
				*a.sel = Selection{AppointmentID: appt.ID, Label: appointmentLabel(appt)}
			}
			return a, phases.NextPhaseCmd
		}
	}

	return a, nil
}

func (a *appointmentsPhase) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Link this consultation to an appointment"))
	sb.WriteString("\n\n")

	if a.loading {
		sb.WriteString(style.Subtitle.Render("Loading upcoming appointments..."))
		return sb.String()
	}

	if a.err != nil {
		sb.WriteString(style.Warning.Render("Could not load appointments: " + a.err.Error()))
		sb.WriteString("\n\n")
	}

	rows := make([]string, 0, len(a.appts)+1)
	for _, appt := range a.appts {
		rows = append(rows, appointmentLabel(appt))
	}
	rows = append(rows, "No appointment")

	for i, row := range rows {
		if i == a.cursor {
			sb.WriteString(style.Cursor.Render("> " + row))
		} else {
			sb.WriteString("  " + row)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderKeyHelp(a.keys.Up, " "))
	sb.WriteString(renderKeyHelp(a.keys.Down, " "))
	sb.WriteString(renderKeyHelp(a.keys.Select, " "))
	sb.WriteString(renderKeyHelp(a.keys.Skip, "\n"))
	sb.WriteString(renderGlobalKeyHelp())

	return sb.String()
}

func appointmentLabel(appt recording.Appointment) string {
	label := fmt.Sprintf("%s  %s", appt.StartsAt.Local().Format("Jan 2 15:04"), appt.DoctorName)
	if appt.Specialty != "" {
		label += " (" + appt.Specialty + ")"
	}
	if appt.PatientName != "" {
		label += " with " + appt.PatientName
	}

	return label
}
