package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// ErrUndecodable is returned when a stored recording is not valid MP3.
var ErrUndecodable = errors.New("audio is not decodable")

// go-mp3 always decodes to 16-bit stereo.
const decodedBytesPerFrame = 4

// Fetcher opens the remote audio at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Player decodes stored recordings and plays them through the default output device.
type Player struct {
	fetcher Fetcher
}

func NewPlayer(fetcher Fetcher) *Player {
	return &Player{fetcher: fetcher}
}

// Decode fetches url and decodes it into PCM. It does not touch audio hardware.
func (p *Player) Decode(ctx context.Context, url string) (*Clip, error) {
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer body.Close()

	return DecodeMP3(body)
}

// Open decodes url and prepares a paused Track on the output device.
func (p *Player) Open(ctx context.Context, url string) (*Track, error) {
	clip, err := p.Decode(ctx, url)
	if err != nil {
		return nil, err
	}

	return NewTrack(clip)
}

// Clip is decoded 16-bit stereo PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Duration is the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}

	frames := len(c.PCM) / decodedBytesPerFrame

	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// DecodeMP3 reads an entire MP3 stream into memory.
func DecodeMP3(r io.Reader) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no audio frames", ErrUndecodable)
	}

	return &Clip{PCM: pcm, SampleRate: dec.SampleRate()}, nil
}

// Track is a clip bound to a playback device.
type Track struct {
	clip   *Clip
	offset atomic.Int64

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	done     chan struct{}
	doneOnce *sync.Once
	closed   bool
}

// NewTrack allocates a playback device for clip. The track starts paused.
func NewTrack(clip *Clip) (*Track, error) {
	t := &Track{clip: clip}
	t.rearm()

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Playback)
	devCnf.Playback.Format = malgo.FormatS16
	devCnf.Playback.Channels = 2
	devCnf.SampleRate = uint32(clip.SampleRate)

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, malgo.DeviceCallbacks{Data: t.fill})
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	t.mgCtx, t.mgDevice = mgCtx, mgDevice

	return t, nil
}

func (t *Track) fill(out, _ []byte, _ uint32) {
	off := int(t.offset.Load())
	n := 0
	if off < len(t.clip.PCM) {
		n = copy(out, t.clip.PCM[off:])
	}
	clear(out[n:])
	t.offset.Add(int64(n))

	if off+n >= len(t.clip.PCM) {
		t.mu.Lock()
		once, done := t.doneOnce, t.done
		t.mu.Unlock()
		once.Do(func() { close(done) })
	}
}

func (t *Track) rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = make(chan struct{})
	t.doneOnce = &sync.Once{}
}

// Play starts or continues playback. A finished track restarts from the beginning.
func (t *Track) Play(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("track closed")
	}
	t.mu.Unlock()

	if t.offset.Load() >= int64(len(t.clip.PCM)) {
		t.offset.Store(0)
		t.rearm()
	}

	if t.mgDevice.IsStarted() {
		return nil
	}

	if err := t.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (t *Track) Pause() error {
	if !t.mgDevice.IsStarted() {
		return nil
	}

	if err := t.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	return nil
}

// Position is the current playhead.
func (t *Track) Position() time.Duration {
	frames := min(t.offset.Load(), int64(len(t.clip.PCM))) / decodedBytesPerFrame

	return time.Duration(frames) * time.Second / time.Duration(t.clip.SampleRate)
}

func (t *Track) Duration() time.Duration {
	return t.clip.Duration()
}

// Done is closed when playback reaches the end of the clip.
func (t *Track) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.done
}

// Close stops playback and frees the device.
func (t *Track) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.mgDevice.IsStarted() {
		if err := t.mgDevice.Stop(); err != nil {
			slog.Warn("failed to stop playback device", "error", err)
		}
	}
	freeDevice(t.mgCtx, t.mgDevice)

	return nil
}
