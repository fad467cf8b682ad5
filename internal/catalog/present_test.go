package catalog_test

import (
	"testing"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/recording"
	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{3599, "59:59"},
		{3725, "62:05"},
		{-3, "00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, catalog.FormatDuration(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0.0 MB"},
		{1024 * 1024, "1.0 MB"},
		{1572864, "1.5 MB"},
		{10_485_760, "10.0 MB"},
		{52_428, "0.0 MB"},
		{104_858, "0.1 MB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, catalog.FormatSize(tt.bytes), "bytes=%d", tt.bytes)
	}
}

func TestPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  recording.Record
		want catalog.Display
	}{
		{
			name: "completed",
			rec: recording.Record{
				ID: "r1", Title: "Consultation with Dr. Lee", Status: recording.StatusCompleted,
				DurationSeconds: 125, FileSizeBytes: 2 * 1024 * 1024, FileURL: "https://x/r1.mp3",
				Transcript: "hello",
			},
			want: catalog.Display{
				ID: "r1", Title: "Consultation with Dr. Lee", Status: recording.StatusCompleted,
				Duration: "02:05", Size: "2.0 MB", Playable: true, HasTranscript: true,
			},
		},
		{
			name: "processing uses placeholder",
			rec: recording.Record{
				ID: "r2", Title: "Consultation recording", Status: recording.StatusProcessing, DurationSeconds: 0,
			},
			want: catalog.Display{
				ID: "r2", Title: "Consultation recording", Status: recording.StatusProcessing,
				Duration: catalog.ProcessingLabel, Size: "0.0 MB",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, catalog.Present(tt.rec))
		})
	}
}

func TestPresentAll(t *testing.T) {
	t.Parallel()

	out := catalog.PresentAll([]recording.Record{
		{ID: "a", Status: recording.StatusProcessing},
		{ID: "b", Status: recording.StatusCompleted, DurationSeconds: 59, FileURL: "u", FileSizeBytes: 1},
	})

	assert.Len(t, out, 2)
	assert.Equal(t, catalog.ProcessingLabel, out[0].Duration)
	assert.Equal(t, "00:59", out[1].Duration)
}
