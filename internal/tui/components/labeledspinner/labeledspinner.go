// Package labeledspinner renders a spinner next to a title, an optional
// checklist of steps and a help line. Used for long-running work such as
// saving a consultation.
package labeledspinner

import (
	"strings"

	"github.com/alkime/consults/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type Model struct {
	Spinner  spinner.Model
	Title    string
	Subtitle string
	Help     string
	// Steps are listed under the title. Those before Current render as
	// done, Current carries the spinner frame.
	Steps   []string
	Current int
}

func New(s spinner.Spinner, title, subtitle, help string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		Spinner:  sp,
		Title:    title,
		Subtitle: subtitle,
		Help:     help,
	}
}

// WithSteps returns a copy listing steps, with the first one current.
func (ls Model) WithSteps(steps ...string) Model {
	ls.Steps = steps
	ls.Current = 0

	return ls
}

// WithCurrent returns a copy with step i current. Out of range values are clamped;
// len(Steps) marks every step done.
func (ls Model) WithCurrent(i int) Model {
	ls.Current = min(max(i, 0), len(ls.Steps))
	return ls
}

func (ls Model) WithSubtitle(subtitle string) Model {
	ls.Subtitle = subtitle
	return ls
}

// Init returns the initial command for the spinner.
func (ls Model) Init() tea.Cmd {
	return ls.Spinner.Tick
}

// Update handles spinner tick messages.
func (ls Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	if tickMsg, ok := teaMsg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		ls.Spinner, cmd = ls.Spinner.Update(tickMsg)

		return ls, cmd
	}

	return ls, nil
}

func (ls Model) View() string {
	return ls.ViewWithHelp(ls.Help)
}

// ViewWithHelp renders with help text computed at render time.
func (ls Model) ViewWithHelp(help string) string {
	var sb strings.Builder

	sb.WriteString(ls.Spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(ls.Title))
	sb.WriteString("\n\n")

	if len(ls.Steps) > 0 {
		for i, step := range ls.Steps {
			switch {
			case i < ls.Current:
				sb.WriteString(style.Success.Render("✓ " + step))
			case i == ls.Current:
				sb.WriteString(ls.Spinner.View() + " " + step)
			default:
				sb.WriteString(style.Muted.Render("· " + step))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if ls.Subtitle != "" {
		sb.WriteString(style.Subtitle.Render(ls.Subtitle))
		sb.WriteString("\n\n")
	}

	sb.WriteString(style.Help.Render(help))

	return sb.String()
}
