// Package playback plays stored recordings through a single audible handle
// and reports progress.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/pkg/channels"
)

var (
	// ErrNotPlayable is returned for records without stored audio.
	ErrNotPlayable = errors.New("recording has no playable audio")
	// ErrPlaybackDecodeFailed is returned when the media cannot be opened.
	ErrPlaybackDecodeFailed = errors.New("playback failed to start")
)

// DefaultSampleInterval is how often progress is sampled while playing.
const DefaultSampleInterval = 100 * time.Millisecond

// Media is an opened, decodable audio source bound to an output.
type Media interface {
	Play(ctx context.Context) error
	Pause() error
	Position() time.Duration
	Duration() time.Duration
	// Done is closed when playback reaches the end.
	Done() <-chan struct{}
	Close() error
}

// Opener opens media at a URL.
type Opener interface {
	Open(ctx context.Context, url string) (Media, error)
}

type OpenerFunc func(ctx context.Context, url string) (Media, error)

func (f OpenerFunc) Open(ctx context.Context, url string) (Media, error) {
	return f(ctx, url)
}

// State is the observable state of the current handle.
type State struct {
	RecordingID string
	FileURL     string
	Progress    float64
	IsPlaying   bool
	// Loading is set while the media for RecordingID is being fetched and decoded.
	Loading bool
	Err     error
}

type handle struct {
	recordingID string
	fileURL     string
	media       Media
	playing     bool
	progress    float64
	samplerStop chan struct{}
}

// Controller owns at most one handle, so at most one recording is audible.
type Controller struct {
	opener   Opener
	interval time.Duration
	logger   *slog.Logger
	events   *channels.Broadcaster[State]

	mu      sync.Mutex
	current *handle
	lastErr error
	lastRec string
	// generation identifies the latest open; loading is set while it runs.
	generation uint64
	loading    bool
}

type Option func(*Controller)

func WithSampleInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func NewController(opener Opener, opts ...Option) *Controller {
	c := &Controller{
		opener:   opener,
		interval: DefaultSampleInterval,
		logger:   slog.Default(),
		events:   channels.NewBroadcaster[State](),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) Subscribe(ch chan<- State) (func(), error) {
	return c.events.Subscribe(ch)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateLocked()
}

// TogglePlay starts rec, or pauses/resumes it when it is already the open
// handle. Opening a different file closes the previous handle first. The
// lock is not held while media is fetched and decoded, so State stays
// responsive; an open overtaken by a later TogglePlay or Stop is discarded.
func (c *Controller) TogglePlay(ctx context.Context, rec recording.Record) (State, error) {
	if !rec.HasAudio() {
		return c.State(), fmt.Errorf("%w: %s is %s", ErrNotPlayable, rec.ID, rec.Status)
	}

	c.mu.Lock()

	h := c.current
	if h == nil || h.fileURL != rec.FileURL {
		gen := c.beginOpenLocked(rec)
		c.mu.Unlock()

		return c.open(ctx, rec, gen)
	}

	defer c.mu.Unlock()

	if h.playing {
		c.stopSamplerLocked(h)
		if err := h.media.Pause(); err != nil {
			c.logger.Warn("failed to pause playback", "recordingId", h.recordingID, "error", err)
		}
		h.playing = false
		h.progress = progressOf(h.media)
		c.publishLocked()

		return c.stateLocked(), nil
	}

	if err := h.media.Play(ctx); err != nil {
		return c.reportLocked(rec.ID, fmt.Errorf("failed to resume playback: %w", err))
	}
	h.playing = true
	c.lastErr = nil
	c.startSamplerLocked(h)
	c.publishLocked()

	return c.stateLocked(), nil
}

// beginOpenLocked closes the current handle and claims a new open generation.
func (c *Controller) beginOpenLocked(rec recording.Record) uint64 {
	c.closeLocked()
	c.generation++
	c.loading = true
	c.lastErr = nil
	c.lastRec = rec.ID
	c.publishLocked()

	return c.generation
}

func (c *Controller) open(ctx context.Context, rec recording.Record, gen uint64) (State, error) {
	media, err := c.opener.Open(ctx, rec.FileURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		if err == nil {
			if cerr := media.Close(); cerr != nil {
				c.logger.Warn("failed to close superseded media", "recordingId", rec.ID, "error", cerr)
			}
		}
		c.logger.Debug("discarded superseded open", "recordingId", rec.ID)

		return c.stateLocked(), nil
	}
	c.loading = false

	if err != nil {
		return c.reportLocked(rec.ID, fmt.Errorf("%w: %w", ErrPlaybackDecodeFailed, err))
	}

	if err := media.Play(ctx); err != nil {
		_ = media.Close()
		return c.reportLocked(rec.ID, fmt.Errorf("%w: %w", ErrPlaybackDecodeFailed, err))
	}

	h := &handle{recordingID: rec.ID, fileURL: rec.FileURL, media: media, playing: true}
	c.current = h
	c.lastErr = nil
	c.lastRec = rec.ID
	c.startSamplerLocked(h)
	c.publishLocked()

	c.logger.Debug("playback started", "recordingId", rec.ID, "duration", media.Duration())

	return c.stateLocked(), nil
}

// reportLocked records a start failure. The caller gets the error and
// subscribers see a stopped state carrying it.
func (c *Controller) reportLocked(recordingID string, err error) (State, error) {
	if c.current != nil {
		c.current.playing = false
		c.stopSamplerLocked(c.current)
	}
	c.lastErr = err
	c.lastRec = recordingID
	c.logger.Warn("playback failed", "recordingId", recordingID, "error", err)
	c.publishLocked()

	return c.stateLocked(), err
}

// Stop closes the open handle, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		c.generation++
		c.loading = false
		c.lastRec = ""
		c.publishLocked()
	}

	if c.current == nil {
		return
	}

	c.closeLocked()
	c.publishLocked()
}

// Close stops playback and drops subscribers.
func (c *Controller) Close() {
	c.Stop()
	c.events.Close()
}

func (c *Controller) closeLocked() {
	h := c.current
	if h == nil {
		return
	}

	c.stopSamplerLocked(h)
	if err := h.media.Close(); err != nil {
		c.logger.Warn("failed to close media", "recordingId", h.recordingID, "error", err)
	}
	c.current = nil
	c.lastRec = ""
}

func (c *Controller) startSamplerLocked(h *handle) {
	stop := make(chan struct{})
	h.samplerStop = stop
	done := h.media.Done()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				if c.current == h && h.samplerStop == stop {
					h.progress = progressOf(h.media)
					c.publishLocked()
				}
				c.mu.Unlock()
			case <-done:
				c.mu.Lock()
				if c.current == h && h.samplerStop == stop {
					h.samplerStop = nil
					h.playing = false
					h.progress = 1
					c.publishLocked()
				}
				c.mu.Unlock()

				return
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopSamplerLocked(h *handle) {
	if h.samplerStop != nil {
		close(h.samplerStop)
		h.samplerStop = nil
	}
}

func (c *Controller) stateLocked() State {
	h := c.current
	if h == nil {
		return State{RecordingID: c.lastRec, Loading: c.loading, Err: c.lastErr}
	}

	return State{
		RecordingID: h.recordingID,
		FileURL:     h.fileURL,
		Progress:    h.progress,
		IsPlaying:   h.playing,
		Err:         c.lastErr,
	}
}

func (c *Controller) publishLocked() {
	c.events.Publish(c.stateLocked())
}

func progressOf(m Media) float64 {
	total := m.Duration()
	if total <= 0 {
		return 0
	}

	return min(max(float64(m.Position())/float64(total), 0), 1)
}
