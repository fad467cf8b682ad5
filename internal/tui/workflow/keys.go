package workflow

import (
	"strings"
	"time"

	"github.com/alkime/consults/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// pollInterval is how often screens re-read session and playback state.
const pollInterval = 100 * time.Millisecond

type pollMsg struct{}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// GlobalKeyMap holds the keys handled by the top-level model on every screen.
type GlobalKeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
}

func DefaultGlobalKeyMap() GlobalKeyMap {
	return GlobalKeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	return s + strings.Join(suffix, "")
}

func renderGlobalKeyHelp() string {
	km := DefaultGlobalKeyMap()

	return renderKeyHelp(km.Quit, " ") + renderKeyHelp(km.ForceQuit)
}
