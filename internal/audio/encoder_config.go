package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultSampleRate is 16kHz, plenty for speech.
	DefaultSampleRate = 16000
	// DefaultChannels is mono (1 channel).
	DefaultChannels = 1
	// DefaultChunkInterval is the target chunk cadence.
	DefaultChunkInterval = time.Second
)

// Format is the encoding of emitted chunks.
type Format string

const (
	// FormatMP3 emits MP3 frames. Concatenated chunks form a playable MP3 stream.
	FormatMP3 Format = "mp3"
	// FormatPCM emits raw S16LE PCM unchanged.
	FormatPCM Format = "pcm"
)

// ContentType returns the MIME type used when storing a payload of this format.
func (f Format) ContentType() string {
	if f == FormatPCM {
		return "audio/L16"
	}

	return "audio/mpeg"
}

// Extension returns the file extension (without dot) for this format.
func (f Format) Extension() string {
	if f == FormatPCM {
		return "pcm"
	}

	return "mp3"
}

// EncoderConfig configures the chunking encoder.
type EncoderConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels. Only mono is supported.
	// Note: MP3 output is internally converted to stereo for the shine-mp3 encoder.
	Channels int

	// ChunkInterval is how often buffered PCM is encoded and emitted.
	ChunkInterval time.Duration

	// Format selects the chunk encoding.
	Format Format
}

// Validate returns an error if the config is invalid.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	if c.ChunkInterval <= 0 {
		return errors.New("chunk interval must be positive")
	}

	if c.Format != FormatMP3 && c.Format != FormatPCM {
		return fmt.Errorf("unsupported chunk format %q", c.Format)
	}

	return nil
}

// WithDefaults returns a config with default values applied to zero fields.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	if c.ChunkInterval == 0 {
		c.ChunkInterval = DefaultChunkInterval
	}

	if c.Format == "" {
		c.Format = FormatMP3
	}

	return c
}
