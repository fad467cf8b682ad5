package catalog

import (
	"fmt"

	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/pkg/collections"
)

// ProcessingLabel replaces the duration of records still being processed.
const ProcessingLabel = "Processing…"

// Display is a record shaped for rendering.
type Display struct {
	ID            string
	Title         string
	Status        recording.Status
	Duration      string
	Size          string
	Created       string
	Playable      bool
	HasTranscript bool
}

// Present converts a backend record into its display shape.
func Present(r recording.Record) Display {
	d := Display{
		ID:            r.ID,
		Title:         r.Title,
		Status:        r.Status,
		Duration:      FormatDuration(r.DurationSeconds),
		Size:          FormatSize(r.FileSizeBytes),
		Playable:      r.HasAudio(),
		HasTranscript: r.Transcript != "",
	}

	if r.Status == recording.StatusProcessing {
		d.Duration = ProcessingLabel
	}

	if !r.CreatedAt.IsZero() {
		d.Created = r.CreatedAt.Local().Format("Jan 2, 2006 15:04")
	}

	return d
}

func PresentAll(records []recording.Record) []Display {
	return collections.Apply(records, Present)
}

// FormatDuration renders seconds as mm:ss. Minutes are not capped at 59.
func FormatDuration(seconds int) string {
	seconds = max(seconds, 0)

	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatSize renders bytes as megabytes with one decimal.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
