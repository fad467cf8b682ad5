// Package levelmeter draws the microphone input level while recording.
package levelmeter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alkime/consults/internal/tui/style"
	"github.com/alkime/consults/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Eight fill levels per row, bottom to top. Index 0 is empty.
const blockChars = " ▁▂▃▄▅▆▇█"

// ClipThreshold is the peak amplitude above which the meter warns about clipping.
const ClipThreshold = 32000

// TickMsg triggers a redraw.
type TickMsg struct{}

// Model renders recent samples as bars, oldest on the left, with a peak
// readout underneath.
type Model struct {
	levels uictl.Levels[int16]
	width  int
	height int
}

func New(levels uictl.Levels[int16], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(1, width),
		height: max(1, height),
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

func (m Model) View() string {
	var samples []int16
	if m.levels != nil {
		samples = m.levels.Read()
	}

	if len(samples) == 0 {
		return m.renderFlat()
	}

	columns := m.columnLevels(samples)
	runes := []rune(blockChars)

	var sb strings.Builder
	for row := range m.height {
		var line strings.Builder
		base := (m.height - 1 - row) * 8
		for _, level := range columns {
			line.WriteRune(runes[min(max(level-base, 0), 8)])
		}
		sb.WriteString(style.Meter.Render(line.String()))
		sb.WriteString("\n")
	}

	peak := peakOf(samples)
	readout := fmt.Sprintf("peak %3d%%", int(float64(peak)*100/math.MaxInt16))
	if peak >= ClipThreshold {
		sb.WriteString(style.Error.Render(readout + "  CLIPPING"))
	} else {
		sb.WriteString(style.Muted.Render(readout))
	}

	return sb.String()
}

// tick schedules the next redraw at ~20 FPS.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// columnLevels buckets samples into width columns and maps each bucket's
// peak to 0..height*8 on a square-root curve so quiet speech stays visible.
func (m Model) columnLevels(samples []int16) []int {
	levels := make([]int, m.width)
	bucket := max(1, len(samples)/m.width)
	top := float64(m.height * 8)

	for col := range m.width {
		start := col * bucket
		if start >= len(samples) {
			break
		}
		amp := peakOf(samples[start:min(start+bucket, len(samples))])
		levels[col] = min(int(math.Sqrt(float64(amp)/math.MaxInt16)*top), m.height*8)
	}

	return levels
}

func (m Model) renderFlat() string {
	var sb strings.Builder
	for row := range m.height {
		if row == m.height-1 {
			sb.WriteString(style.Muted.Render(strings.Repeat("▁", m.width)))
		} else {
			sb.WriteString(strings.Repeat(" ", m.width))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(style.Muted.Render("no input"))

	return sb.String()
}

func peakOf(samples []int16) int16 {
	var peak int16
	for _, s := range samples {
		if s == math.MinInt16 {
			return math.MaxInt16
		}
		peak = max(peak, s, -s)
	}

	return peak
}
