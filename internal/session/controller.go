package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/pkg/channels"
)

var (
	// ErrSessionActive is returned by Start while another session holds the device.
	ErrSessionActive = errors.New("a recording session is already active")
	// ErrNoActiveSession is returned when an operation needs a session and there is none.
	ErrNoActiveSession = errors.New("no active recording session")
)

// DeviceFactory returns a fresh capture device for each session.
type DeviceFactory func() audio.CaptureDevice

// Snapshot is the observable session state.
type Snapshot struct {
	State          State
	ElapsedSeconds int
	AppointmentID  string
	Err            error
}

// Capture is the frozen output of a stopped session, handed to the upload
// pipeline exactly once.
type Capture struct {
	Buffer         *audio.ChunkBuffer
	ElapsedSeconds int
	AppointmentID  string
	StartedAt      time.Time
}

// Controller owns the single recording session. All methods are safe for
// concurrent use. Every state change and every elapsed-time tick is published
// to subscribers as a Snapshot.
type Controller struct {
	newDevice DeviceFactory
	logger    *slog.Logger
	now       func() time.Time
	tick      time.Duration
	events    *channels.Broadcaster[Snapshot]

	mu            sync.Mutex
	state         State
	lastErr       error
	device        audio.CaptureDevice
	buffer        *audio.ChunkBuffer
	pumpDone      chan struct{}
	appointmentID string
	startedAt     time.Time
	spanStart     time.Time
	accumulated   time.Duration
	frozen        int
	tickerStop    chan struct{}
}

type Option func(*Controller)

// WithClock replaces the wall clock used to measure elapsed time.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTick sets the cadence of elapsed-time notifications.
func WithTick(d time.Duration) Option {
	return func(c *Controller) { c.tick = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func NewController(newDevice DeviceFactory, opts ...Option) *Controller {
	c := &Controller{
		newDevice: newDevice,
		logger:    slog.Default(),
		now:       time.Now,
		tick:      time.Second,
		events:    channels.NewBroadcaster[Snapshot](),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers ch for change notifications. The returned func unsubscribes.
func (c *Controller) Subscribe(ch chan<- Snapshot) (func(), error) {
	return c.events.Subscribe(ch)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// Start acquires a capture device and begins recording. appointmentID may be
// empty; it is fixed for the lifetime of the session. If the device cannot be
// acquired the session stays in its current state and the error is returned.
func (c *Controller) Start(ctx context.Context, appointmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		return ErrSessionActive
	}

	next, err := Transition(c.state, EventStart)
	if err != nil {
		return err
	}

	device := c.newDevice()
	chunks, err := device.Acquire(ctx)
	if err != nil {
		c.logger.Warn("capture device acquisition failed", "error", err)
		// A partially acquired device still has to give the hardware back.
		if relErr := device.Release(ctx); relErr != nil {
			c.logger.Debug("release after failed acquire", "error", relErr)
		}
		return fmt.Errorf("failed to start recording: %w", err)
	}

	c.device = device
	c.buffer = audio.NewChunkBuffer()
	c.pumpDone = make(chan struct{})
	c.appointmentID = appointmentID
	c.startedAt = c.now()
	c.spanStart = c.startedAt
	c.accumulated = 0
	c.frozen = 0
	c.lastErr = nil

	go c.pump(chunks, c.buffer, c.pumpDone)

	c.setStateLocked(next)
	c.startTickerLocked()

	c.logger.Info("recording started", "appointmentId", appointmentID)

	return nil
}

func (c *Controller) pump(chunks <-chan audio.Chunk, buf *audio.ChunkBuffer, done chan<- struct{}) {
	defer close(done)

	for chunk := range chunks {
		if err := buf.Append(chunk.Data); err != nil {
			c.logger.Warn("dropping chunk", "seq", chunk.Seq, "error", err)
		}
	}
}

// Pause halts capture and the elapsed-time counter.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pauseLocked(ctx)
}

// Resume continues capture after Pause.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resumeLocked(ctx)
}

// PauseOrResume toggles between Recording and Paused and returns the new state.
func (c *Controller) PauseOrResume(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.state {
	case StateRecording:
		err = c.pauseLocked(ctx)
	case StatePaused:
		err = c.resumeLocked(ctx)
	case StateIdle, StateFailed:
		err = ErrNoActiveSession
	case StateStopping, StateSaving:
		err = fmt.Errorf("%w: session is %s", ErrInvalidTransition, c.state)
	default:
		err = fmt.Errorf("unknown state %q", c.state)
	}

	return c.state, err
}

func (c *Controller) pauseLocked(ctx context.Context) error {
	if !c.state.Active() {
		return ErrNoActiveSession
	}

	next, err := Transition(c.state, EventPause)
	if err != nil {
		return err
	}

	if err := c.device.Pause(ctx); err != nil {
		return fmt.Errorf("failed to pause capture: %w", err)
	}

	c.stopTickerLocked()
	c.accumulated += c.now().Sub(c.spanStart)
	c.setStateLocked(next)

	return nil
}

func (c *Controller) resumeLocked(ctx context.Context) error {
	if !c.state.Active() {
		return ErrNoActiveSession
	}

	next, err := Transition(c.state, EventResume)
	if err != nil {
		return err
	}

	if err := c.device.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume capture: %w", err)
	}

	c.spanStart = c.now()
	c.setStateLocked(next)
	c.startTickerLocked()

	return nil
}

// Stop ends capture. It freezes the elapsed time, releases the device,
// waits for the final chunk to land in the buffer, and freezes it. On
// success the session is Saving and the returned Capture must be settled
// with Complete. Stop is rejected unless the session is Recording or Paused.
func (c *Controller) Stop(ctx context.Context) (*Capture, error) {
	c.mu.Lock()
	if !c.state.Active() {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}

	next, err := Transition(c.state, EventStop)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if c.state == StateRecording {
		c.accumulated += c.now().Sub(c.spanStart)
	}
	c.stopTickerLocked()
	c.frozen = int(c.accumulated / time.Second)
	c.setStateLocked(next)

	device, buffer, pumpDone := c.device, c.buffer, c.pumpDone
	c.mu.Unlock()

	relErr := device.Release(ctx)
	if relErr == nil {
		select {
		case <-pumpDone:
		case <-ctx.Done():
			relErr = ctx.Err()
		}
	}
	buffer.Freeze()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.device = nil

	if relErr != nil {
		buffer.Release()
		c.buffer = nil
		c.failLocked(fmt.Errorf("failed to flush capture device: %w", relErr))
		return nil, c.lastErr
	}

	next, err = Transition(c.state, EventReleased)
	if err != nil {
		return nil, err
	}
	c.setStateLocked(next)

	capture := &Capture{
		Buffer:         buffer,
		ElapsedSeconds: c.frozen,
		AppointmentID:  c.appointmentID,
		StartedAt:      c.startedAt,
	}
	// The buffer now belongs to the caller.
	c.buffer = nil

	c.logger.Info("recording stopped",
		"elapsedSeconds", capture.ElapsedSeconds,
		"chunks", buffer.Len(),
		"bytes", buffer.Size())

	return capture, nil
}

// Complete settles a session in Saving: a nil err returns it to Idle,
// anything else moves it to Failed.
func (c *Controller) Complete(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSaving {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, c.state)
	}

	if err != nil {
		c.failLocked(err)
		return nil
	}

	next, terr := Transition(c.state, EventSaved)
	if terr != nil {
		return terr
	}
	c.setStateLocked(next)

	return nil
}

// Abort tears down any active session without saving. The device is released
// and the buffer cleared.
func (c *Controller) Abort(ctx context.Context) {
	c.mu.Lock()
	device, buffer := c.device, c.buffer
	c.stopTickerLocked()
	c.device, c.buffer = nil, nil
	active := c.state.Active()
	c.mu.Unlock()

	if device != nil {
		if err := device.Release(ctx); err != nil {
			c.logger.Warn("release on abort", "error", err)
		}
	}
	if buffer != nil {
		buffer.Release()
	}

	if active {
		c.mu.Lock()
		c.failLocked(errors.New("recording aborted"))
		c.mu.Unlock()
	}
}

func (c *Controller) failLocked(err error) {
	next, terr := Transition(c.state, EventFail)
	if terr != nil {
		c.logger.Error("cannot fail session", "state", c.state, "error", terr)
		return
	}

	c.lastErr = err
	c.setStateLocked(next)
	c.logger.Error("recording session failed", "error", err)
}

// Close aborts any active session and drops all subscribers.
func (c *Controller) Close(ctx context.Context) {
	c.Abort(ctx)
	c.events.Close()
}

func (c *Controller) elapsedLocked() int {
	switch c.state {
	case StateRecording:
		return int((c.accumulated + c.now().Sub(c.spanStart)) / time.Second)
	case StatePaused:
		return int(c.accumulated / time.Second)
	case StateStopping, StateSaving:
		return c.frozen
	case StateIdle, StateFailed:
		return c.frozen
	default:
		return 0
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:          c.state,
		ElapsedSeconds: c.elapsedLocked(),
		AppointmentID:  c.appointmentID,
		Err:            c.lastErr,
	}
}

func (c *Controller) setStateLocked(s State) {
	c.logger.Debug("session transition", "from", c.state, "to", s)
	c.state = s
	c.events.Publish(c.snapshotLocked())
}

func (c *Controller) startTickerLocked() {
	stop := make(chan struct{})
	c.tickerStop = stop

	go func() {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				// A tick racing a pause or stop must not publish.
				if c.tickerStop == stop && c.state == StateRecording {
					c.events.Publish(c.snapshotLocked())
				}
				c.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}
