package labeledspinner_test

import (
	"testing"

	"github.com/alkime/consults/internal/tui/components/labeledspinner"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

//nolint:gochecknoinits // recommend for CI by bubbletea folks
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestLabeledSpinner(t *testing.T) {
	m := labeledspinner.New(spinner.Dot, "Saving consultation", "Creating record", "Please wait")

	v0 := m.View()
	t.Run("view output", func(t *testing.T) {
		assert.Contains(t, v0, "Saving consultation")
		assert.Contains(t, v0, "Creating record")
		assert.Contains(t, v0, "Please wait")
		assert.Contains(t, v0, spinner.Dot.Frames[0])
	})

	t.Run("ticks advance the frame", func(t *testing.T) {
		m, _ = m.Update(spinner.TickMsg{})
		assert.Contains(t, m.View(), spinner.Dot.Frames[1])
	})

	t.Run("subtitle swap keeps the frame", func(t *testing.T) {
		m2 := m.WithSubtitle("Uploading audio")
		v := m2.View()
		assert.Contains(t, v, "Uploading audio")
		assert.NotContains(t, v, "Creating record")
		assert.Contains(t, v, spinner.Dot.Frames[1])
		assert.Contains(t, m.View(), "Creating record")
	})

	t.Run("empty subtitle is omitted", func(t *testing.T) {
		v := m.WithSubtitle("").ViewWithHelp("custom help")
		assert.Contains(t, v, "custom help")
		assert.NotContains(t, v, "Please wait")
	})
}

func TestLabeledSpinnerSteps(t *testing.T) {
	m := labeledspinner.New(spinner.Line, "Saving consultation", "", "").
		WithSteps("Creating the record", "Uploading the audio", "Completing the record")

	tests := []struct {
		name    string
		current int
		want    []string
	}{
		{
			name:    "first step running",
			current: 0,
			want:    []string{spinner.Line.Frames[0] + " Creating the record", "· Uploading the audio", "· Completing the record"},
		},
		{
			name:    "second step running",
			current: 1,
			want:    []string{"✓ Creating the record", spinner.Line.Frames[0] + " Uploading the audio", "· Completing the record"},
		},
		{
			name:    "all done",
			current: 3,
			want:    []string{"✓ Creating the record", "✓ Uploading the audio", "✓ Completing the record"},
		},
		{
			name:    "clamped",
			current: 9,
			want:    []string{"✓ Completing the record"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := m.WithCurrent(tt.current).View()
			for _, w := range tt.want {
				assert.Contains(t, v, w)
			}
		})
	}
}
