package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// Chunker reads raw PCM from a channel and emits encoded chunks on a fixed
// cadence. When the input channel closes, any buffered PCM is flushed as a
// final chunk before the output channel is closed.
type Chunker struct {
	config EncoderConfig
	input  <-chan []byte
	output chan Chunk
	levels *LevelBuffer
	now    func() time.Time

	encoder *mp3encoder.Encoder
	buffer  []byte
	seq     int
	started bool

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// ChunkerOption customizes a Chunker.
type ChunkerOption func(*Chunker)

// WithLevels taps every PCM packet into the given level buffer.
func WithLevels(levels *LevelBuffer) ChunkerOption {
	return func(c *Chunker) { c.levels = levels }
}

// WithClock overrides the clock used to timestamp chunks.
func WithClock(now func() time.Time) ChunkerOption {
	return func(c *Chunker) { c.now = now }
}

// NewChunker creates a chunker over input. Input carries S16LE PCM.
func NewChunker(config EncoderConfig, input <-chan []byte, opts ...ChunkerOption) (*Chunker, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	c := &Chunker{
		config: config,
		input:  input,
		output: make(chan Chunk, 16),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Chunks is the output stream. It is closed once the chunker stops.
func (c *Chunker) Chunks() <-chan Chunk {
	return c.output
}

// Start launches the chunking goroutine.
func (c *Chunker) Start(ctx context.Context) error {
	if c.started {
		return errors.New("chunker already started")
	}
	c.started = true

	if c.config.Format == FormatMP3 {
		// shine-mp3 mishandles mono input, so frames are encoded as L=R stereo.
		c.encoder = mp3encoder.NewEncoder(c.config.SampleRate, 2)
	}

	c.wg.Go(func() {
		defer close(c.output)

		ticker := time.NewTicker(c.config.ChunkInterval)
		defer ticker.Stop()

		for {
			select {
			case data, ok := <-c.input:
				if !ok {
					if err := c.flush(ctx); err != nil {
						c.setError(fmt.Errorf("failed to flush final chunk: %w", err))
					}

					return
				}

				c.buffer = append(c.buffer, data...)
				if c.levels != nil {
					c.levels.WritePCM(data)
				}

			case <-ticker.C:
				if err := c.flush(ctx); err != nil {
					c.setError(err)
					return
				}

			case <-ctx.Done():
				c.setError(fmt.Errorf("chunker context cancelled: %w", ctx.Err()))
				return
			}
		}
	})

	return nil
}

// flush encodes buffered PCM into a chunk and sends it downstream.
// An empty buffer emits nothing.
func (c *Chunker) flush(ctx context.Context) error {
	if len(c.buffer) == 0 {
		return nil
	}

	data, err := c.encode(c.buffer)
	if err != nil {
		return err
	}
	c.buffer = c.buffer[:0]

	if len(data) == 0 {
		return nil
	}

	chunk := Chunk{Seq: c.seq, At: c.now(), Data: data}
	c.seq++

	select {
	case c.output <- chunk:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chunk %d dropped: %w", chunk.Seq, ctx.Err())
	}
}

func (c *Chunker) encode(pcm []byte) ([]byte, error) {
	if c.config.Format == FormatPCM {
		out := make([]byte, len(pcm))
		copy(out, pcm)

		return out, nil
	}

	mono := PCMToSamples(pcm)
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}

	var out bytes.Buffer
	if err := c.encoder.Write(&out, stereo); err != nil {
		return nil, fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	slog.Debug("encoded chunk", "seq", c.seq, "samples", len(mono), "bytes", out.Len())

	return out.Bytes(), nil
}

// Wait blocks until the chunker stops and returns the first error it hit.
func (c *Chunker) Wait() error {
	c.wg.Wait()

	return c.err
}

func (c *Chunker) setError(err error) {
	c.errOnce.Do(func() {
		c.err = err
		slog.Debug("chunker error", "error", err)
	})
}
