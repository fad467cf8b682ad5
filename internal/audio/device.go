package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/consults/pkg/collections"
	"github.com/gen2brain/malgo"
)

// Microphone is the malgo-backed CaptureDevice. A Microphone serves a single
// recording session: once released it cannot be acquired again.
type Microphone struct {
	conf   *DeviceConfig
	levels *LevelBuffer

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	pcmC     chan []byte
	chunker  *Chunker
	cancel   context.CancelFunc
	acquired bool

	releaseOnce sync.Once
	releaseErr  error
}

var _ CaptureDevice = (*Microphone)(nil)

// NewMicrophone creates an unacquired microphone. levels may be nil.
func NewMicrophone(conf *DeviceConfig, levels *LevelBuffer) *Microphone {
	if conf == nil {
		conf = DefaultDeviceConfig()
	}

	return &Microphone{conf: conf, levels: levels}
}

func (m *Microphone) Acquire(ctx context.Context) (<-chan Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquired {
		return nil, errors.New("microphone already acquired")
	}

	pcmC := make(chan []byte, 64)

	mgCtx, mgDevice, err := m.allocCapture(pcmC)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceAccessDenied, err)
	}

	var opts []ChunkerOption
	if m.levels != nil {
		opts = append(opts, WithLevels(m.levels))
	}

	chunker, err := NewChunker(m.conf.encoderConfig(), pcmC, opts...)
	if err != nil {
		freeDevice(mgCtx, mgDevice)
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	// The chunker outlives the acquiring call; it stops when Release closes pcmC.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := chunker.Start(runCtx); err != nil {
		cancel()
		freeDevice(mgCtx, mgDevice)
		return nil, fmt.Errorf("failed to start chunker: %w", err)
	}

	if err := mgDevice.Start(); err != nil {
		freeDevice(mgCtx, mgDevice)
		close(pcmC)
		_ = chunker.Wait()
		cancel()
		return nil, fmt.Errorf("%w: failed to start malgo device: %w", ErrDeviceAccessDenied, err)
	}

	m.mgCtx, m.mgDevice = mgCtx, mgDevice
	m.pcmC, m.chunker, m.cancel = pcmC, chunker, cancel
	m.acquired = true

	slog.Debug("microphone acquired", "sampleRate", m.conf.SampleRate, "format", m.conf.ChunkFormat)

	return chunker.Chunks(), nil
}

func (m *Microphone) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mgDevice == nil {
		return errors.New("microphone not acquired")
	}

	if !m.mgDevice.IsStarted() {
		return nil
	}

	if err := m.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (m *Microphone) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mgDevice == nil {
		return errors.New("microphone not acquired")
	}

	if m.mgDevice.IsStarted() {
		return nil
	}

	if err := m.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

// Release stops the hardware, closes the PCM feed so the chunker flushes its
// final chunk, and waits for the chunk stream to close.
func (m *Microphone) Release(ctx context.Context) error {
	m.releaseOnce.Do(func() {
		m.mu.Lock()
		mgCtx, mgDevice := m.mgCtx, m.mgDevice
		pcmC, chunker, cancel := m.pcmC, m.chunker, m.cancel
		m.mgCtx, m.mgDevice = nil, nil
		m.mu.Unlock()

		if mgDevice == nil {
			return
		}

		if mgDevice.IsStarted() {
			if err := mgDevice.Stop(); err != nil {
				slog.Warn("failed to stop malgo device", "error", err)
			}
		}
		freeDevice(mgCtx, mgDevice)

		// No more callbacks can fire once the device is uninitialized.
		close(pcmC)
		m.releaseErr = chunker.Wait()
		cancel()

		slog.Debug("microphone released", "error", m.releaseErr)
	})

	return m.releaseErr
}

func (m *Microphone) allocCapture(pcmC chan<- []byte) (*malgo.AllocatedContext, *malgo.Device, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = m.conf.Format
	devCnf.Capture.Channels = uint32(m.conf.CaptureChannels)
	devCnf.SampleRate = uint32(m.conf.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			// malgo reuses its buffer between callbacks.
			packet := make([]byte, len(samples))
			copy(packet, samples)
			pcmC <- packet
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	return mgCtx, mgDevice, nil
}

func freeDevice(mgCtx *malgo.AllocatedContext, mgDevice *malgo.Device) {
	if mgDevice != nil {
		mgDevice.Uninit()
	}
	uninitializeContext(mgCtx)
}

// Info describes an audio device available to the host.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

// EnumerateDevices lists capture devices known to malgo.
func EnumerateDevices(ctx context.Context) ([]Info, error) {
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, deviceInfo), nil
}

func deviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("%d-bit, %dch @ %dHz",
			malgo.SampleSizeInBytes(mf.Format)*8, mf.Channels, mf.SampleRate)
	}

	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
