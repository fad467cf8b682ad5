package audio

import (
	"time"

	"github.com/gen2brain/malgo"
)

// DeviceConfig configures the malgo capture device.
type DeviceConfig struct {
	Format          malgo.FormatType
	CaptureChannels int
	SampleRate      int
	// ChunkInterval is the cadence at which captured audio is emitted as a chunk.
	ChunkInterval time.Duration
	// ChunkFormat selects how captured PCM is encoded into chunks.
	ChunkFormat Format
}

// DefaultDeviceConfig returns a mono 16-bit capture config emitting MP3 chunks every second.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
		ChunkInterval:   DefaultChunkInterval,
		ChunkFormat:     FormatMP3,
	}
}

func (c *DeviceConfig) encoderConfig() EncoderConfig {
	return EncoderConfig{
		SampleRate:    c.SampleRate,
		Channels:      c.CaptureChannels,
		ChunkInterval: c.ChunkInterval,
		Format:        c.ChunkFormat,
	}.WithDefaults()
}
