package audio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alkime/consults/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	body []byte
	err  error
}

func (f staticFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}

	return io.NopCloser(bytes.NewReader(f.body)), nil
}

func TestDecodeMP3_RejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input io.Reader
	}{
		{name: "empty", input: strings.NewReader("")},
		{name: "text", input: strings.NewReader("definitely not an mp3 stream")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := audio.DecodeMP3(tt.input)
			require.ErrorIs(t, err, audio.ErrUndecodable)
		})
	}
}

func TestPlayer_Decode(t *testing.T) {
	t.Parallel()

	t.Run("fetch failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		_, err := audio.NewPlayer(staticFetcher{err: boom}).Decode(context.Background(), "https://example.test/a.mp3")
		require.ErrorIs(t, err, boom)
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()

		_, err := audio.NewPlayer(staticFetcher{body: []byte("RIFF....WAVE")}).Decode(context.Background(), "u")
		require.ErrorIs(t, err, audio.ErrUndecodable)
	})
}

func TestClip_Duration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		clip audio.Clip
		want time.Duration
	}{
		{name: "one second", clip: audio.Clip{PCM: make([]byte, 44100*4), SampleRate: 44100}, want: time.Second},
		{name: "half second", clip: audio.Clip{PCM: make([]byte, 8000*4), SampleRate: 16000}, want: 500 * time.Millisecond},
		{name: "unknown rate", clip: audio.Clip{PCM: make([]byte, 16)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.clip.Duration())
		})
	}
}
