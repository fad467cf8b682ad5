package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceAccessDenied is returned when the microphone cannot be acquired,
// e.g. permission was refused or no capture device exists.
var ErrDeviceAccessDenied = errors.New("microphone access denied")

// Chunk is one fragment of captured audio. Data is opaque to everything but
// the encoder that produced it; chunks concatenated in Seq order form the
// recording payload.
type Chunk struct {
	Seq  int
	At   time.Time
	Data []byte
}

// CaptureDevice is the capture adapter the recording session drives.
//
// Acquire claims the hardware and returns the chunk stream. The stream is
// closed only after Release has flushed the final chunk, so a consumer that
// drains it until close never truncates the payload.
type CaptureDevice interface {
	Acquire(ctx context.Context) (<-chan Chunk, error)
	// Pause stops capturing without releasing the hardware.
	Pause(ctx context.Context) error
	// Resume continues capturing after Pause.
	Resume(ctx context.Context) error
	// Release stops capture, flushes and closes the chunk stream, and frees
	// the hardware. Calls after the first are no-ops returning the first result.
	Release(ctx context.Context) error
}
