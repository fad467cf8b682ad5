// Package tui hosts the consult terminal UI.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/consults/internal/tui/components/phases"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/alkime/consults/internal/tui/workflow"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Config configures the top-level model.
type Config struct {
	Title string
	// Cancel is called when the user quits, so in-flight work can stop.
	Cancel context.CancelFunc
}

// model wraps a screen with a header and the global quit keys.
type model struct {
	config       Config
	keys         workflow.GlobalKeyMap
	screen       tea.Model
	windowWidth  int
	windowHeight int
}

func New(config Config, screen tea.Model) tea.Model {
	return &model{
		config:       config,
		keys:         workflow.DefaultGlobalKeyMap(),
		screen:       screen,
		windowWidth:  80,
		windowHeight: 24,
	}
}

func (m *model) Init() tea.Cmd {
	return m.screen.Init()
}

func (m *model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := teaMsg.(tea.WindowSizeMsg); ok {
		m.windowWidth = wsm.Width
		m.windowHeight = wsm.Height
	}

	if km, ok := teaMsg.(tea.KeyMsg); ok {
		if key.Matches(km, m.keys.Quit) || key.Matches(km, m.keys.ForceQuit) {
			if m.config.Cancel != nil {
				m.config.Cancel()
			}

			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.screen, cmd = m.screen.Update(teaMsg)

	return m, cmd
}

func (m *model) View() string {
	var sb strings.Builder

	sb.WriteString(style.Subtitle.Render(m.header()))
	sb.WriteString("\n\n")
	sb.WriteString(m.screen.View())

	return sb.String()
}

func (m *model) header() string {
	ph, ok := m.screen.(phases.Model)
	if !ok {
		return m.config.Title
	}

	cur, total := ph.Position()

	return fmt.Sprintf("%s · step %d/%d: %s", m.config.Title, cur, total, ph.CurrentPhaseName())
}
