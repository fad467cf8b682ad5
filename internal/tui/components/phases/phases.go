// Package phases sequences full-screen TUI steps. Only the current step
// receives messages. A step moves the sequence with NextPhaseMsg and
// PrevPhaseMsg; entering a committed step makes every earlier one
// unreachable, so nothing can navigate back across work already done.
package phases

import (
	tea "github.com/charmbracelet/bubbletea"
)

// NextPhaseMsg advances to the next phase. It is ignored on the last one.
type NextPhaseMsg struct{}

// PrevPhaseMsg returns to the previous phase unless a committed phase is in the way.
type PrevPhaseMsg struct{}

func NextPhaseCmd() tea.Msg {
	return NextPhaseMsg{}
}

func PrevPhaseCmd() tea.Msg {
	return PrevPhaseMsg{}
}

// Phase is one named step. Its model is re-initialized every time the
// step becomes current.
type Phase struct {
	Name      string
	model     tea.Model
	committed bool
}

func NewPhase(name string, model tea.Model) Phase {
	return Phase{Name: name, model: model}
}

// NewCommittedPhase returns a phase that cannot be left backwards once entered.
func NewCommittedPhase(name string, model tea.Model) Phase {
	return Phase{Name: name, model: model, committed: true}
}

func (p Phase) update(msg tea.Msg) (Phase, tea.Cmd) {
	var cmd tea.Cmd
	p.model, cmd = p.model.Update(msg)

	return p, cmd
}

type Model struct {
	steps []Phase
	curr  int
	// floor is the lowest index PrevPhaseMsg may reach.
	floor int
}

func New(steps []Phase) Model {
	return Model{steps: steps}
}

func (m Model) Init() tea.Cmd {
	return m.steps[m.curr].model.Init()
}

func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg.(type) {
	case NextPhaseMsg:
		if m.curr >= len(m.steps)-1 {
			return m, nil
		}
		m.curr++
		if m.steps[m.curr].committed {
			m.floor = m.curr
		}

		return m, m.Init()

	case PrevPhaseMsg:
		if !m.CanGoBack() {
			return m, nil
		}
		m.curr--

		return m, m.Init()
	}

	var cmd tea.Cmd
	m.steps[m.curr], cmd = m.steps[m.curr].update(teaMsg)

	return m, cmd
}

func (m Model) View() string {
	return m.steps[m.curr].model.View()
}

// CanGoBack reports whether PrevPhaseMsg would move the sequence.
func (m Model) CanGoBack() bool {
	return m.curr > m.floor
}

func (m Model) CurrentPhaseName() string {
	return m.steps[m.curr].Name
}

// Position returns the 1-based index of the current phase and the total.
func (m Model) Position() (current, total int) {
	return m.curr + 1, len(m.steps)
}
