package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

type libraryKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Play     key.Binding
	Download key.Binding
}

func defaultLibraryKeyMap() libraryKeyMap {
	return libraryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Play: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "play/pause"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download"),
		),
	}
}

type catalogLoadedMsg struct {
	recs []recording.Record
	err  error
}

type playToggledMsg struct {
	state playback.State
	err   error
}

type downloadedMsg struct {
	path string
	err  error
}

// libraryModel lists stored recordings with playback and download.
type libraryModel struct {
	ctx         context.Context
	keys        libraryKeyMap
	lib         Library
	downloadDir string
	progress    progress.Model

	records []recording.Record
	rows    []catalog.Display
	cursor  int
	loading bool
	err     error
	status  string
	player  playback.State
}

func NewLibrary(ctx context.Context, lib Library, downloadDir string) tea.Model {
	return &libraryModel{
		ctx:         ctx,
		keys:        defaultLibraryKeyMap(),
		lib:         lib,
		downloadDir: downloadDir,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		loading: true,
	}
}

func (l *libraryModel) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg {
		recs, err := l.lib.ListCatalog(l.ctx)
		return catalogLoadedMsg{recs: recs, err: err}
	}, pollCmd())
}

func (l *libraryModel) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case catalogLoadedMsg:
		l.loading = false
		l.err = msg.err
		l.records = msg.recs
		l.rows = catalog.PresentAll(msg.recs)
		l.cursor = min(l.cursor, max(len(l.rows)-1, 0))

	case pollMsg:
		l.player = l.lib.PlaybackState()
		return l, pollCmd()

	case playToggledMsg:
		l.player = msg.state
		l.status = ""
		if msg.err != nil {
			l.status = style.Error.Render(msg.err.Error())
		}

	case downloadedMsg:
		if msg.err != nil {
			l.status = style.Error.Render("Download failed: " + msg.err.Error())
		} else {
			l.status = style.Success.Render("Saved to " + msg.path)
		}

	case tea.KeyMsg:
		if len(l.records) == 0 {
			return l, nil
		}

		switch {
		case key.Matches(msg, l.keys.Up):
			l.cursor = max(l.cursor-1, 0)
		case key.Matches(msg, l.keys.Down):
			l.cursor = min(l.cursor+1, len(l.records)-1)
		case key.Matches(msg, l.keys.Play):
			rec := l.records[l.cursor]
			return l, func() tea.Msg {
				state, err := l.lib.TogglePlay(l.ctx, rec)
				return playToggledMsg{state: state, err: err}
			}
		case key.Matches(msg, l.keys.Download):
			rec := l.records[l.cursor]
			l.status = style.Subtitle.Render("Downloading " + rec.Title + "...")
			return l, func() tea.Msg {
				path, err := l.lib.SaveRecording(l.ctx, rec, l.downloadDir)
				return downloadedMsg{path: path, err: err}
			}
		}
	}

	return l, nil
}

func (l *libraryModel) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Consultation recordings"))
	sb.WriteString("\n\n")

	switch {
	case l.loading:
		sb.WriteString(style.Subtitle.Render("Loading recordings..."))
		return sb.String()
	case l.err != nil:
		sb.WriteString(style.Error.Render(l.err.Error()))
		sb.WriteString("\n\n")
		sb.WriteString(renderGlobalKeyHelp())
		return sb.String()
	case len(l.rows) == 0:
		sb.WriteString(style.Muted.Render("No recordings yet. Run `consult record` to capture one."))
		sb.WriteString("\n\n")
		sb.WriteString(renderGlobalKeyHelp())
		return sb.String()
	}

	for i, d := range l.rows {
		sb.WriteString(l.renderRow(i, d))
		sb.WriteString("\n")
	}

	if l.player.RecordingID != "" {
		sb.WriteString("\n")
		sb.WriteString(l.progress.ViewAs(l.player.Progress))
		sb.WriteString(style.Subtitle.Render(fmt.Sprintf(" %3.0f%%", l.player.Progress*100)))
		sb.WriteString("\n")
	}
	if l.player.Err != nil && l.status == "" {
		sb.WriteString(style.Error.Render(l.player.Err.Error()))
		sb.WriteString("\n")
	}
	if l.status != "" {
		sb.WriteString(l.status)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderKeyHelp(l.keys.Up, " "))
	sb.WriteString(renderKeyHelp(l.keys.Down, " "))
	sb.WriteString(renderKeyHelp(l.keys.Play, " "))
	sb.WriteString(renderKeyHelp(l.keys.Download, "\n"))
	sb.WriteString(renderGlobalKeyHelp())

	return sb.String()
}

func (l *libraryModel) renderRow(i int, d catalog.Display) string {
	marker := "  "
	if d.ID == l.player.RecordingID {
		marker = "❚❚"
		switch {
		case l.player.Loading:
			marker = style.Muted.Render("… ")
		case l.player.IsPlaying:
			marker = style.Playing.Render("▶ ")
		}
	}

	line := fmt.Sprintf("%s %-44s %-12s %8s  %s", marker, truncate(d.Title, 44), d.Duration, d.Size, d.Created)
	if !d.Playable {
		line = style.Muted.Render(line)
	}

	if i == l.cursor {
		return style.Cursor.Render(">") + line
	}

	return " " + line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}
