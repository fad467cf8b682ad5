package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/alkime/consults/pkg/uictl"
)

// DefaultLevelWindow holds roughly 50ms of 16kHz mono audio.
const DefaultLevelWindow = 800

// LevelBuffer keeps the most recent captured samples so a UI can draw an
// input level meter while recording. It satisfies uictl.Levels[int16].
type LevelBuffer struct {
	mu      sync.RWMutex
	samples []int16
	head    int
	count   int
}

var _ uictl.Levels[int16] = (*LevelBuffer)(nil)

// NewLevelBuffer creates a buffer holding at most capacity samples.
func NewLevelBuffer(capacity int) *LevelBuffer {
	if capacity <= 0 {
		capacity = DefaultLevelWindow
	}

	return &LevelBuffer{samples: make([]int16, capacity)}
}

// Write appends samples, overwriting the oldest once full.
func (b *LevelBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)
	for _, s := range samples {
		b.samples[b.head] = s
		b.head = (b.head + 1) % capacity
		if b.count < capacity {
			b.count++
		}
	}
}

// WritePCM decodes S16LE bytes and appends them.
func (b *LevelBuffer) WritePCM(data []byte) {
	b.Write(PCMToSamples(data))
}

// Latest returns up to n of the most recent samples, oldest first.
func (b *LevelBuffer) Latest(n int) []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, b.count)
	capacity := len(b.samples)
	start := (b.head - n + capacity) % capacity

	out := make([]int16, n)
	for i := range n {
		out[i] = b.samples[(start+i)%capacity]
	}

	return out
}

// Read returns every buffered sample, oldest first.
func (b *LevelBuffer) Read() []int16 {
	return b.Latest(b.Count())
}

// Count is the number of valid samples held.
func (b *LevelBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Reset discards all samples.
func (b *LevelBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.count = 0
}

// Peak returns the loudest buffered sample normalized to [0, 1].
func (b *LevelBuffer) Peak() float64 {
	var peak float64
	for _, s := range b.Read() {
		peak = max(peak, math.Abs(float64(s)))
	}

	return math.Min(peak/math.MaxInt16, 1)
}

// PCMToSamples converts S16LE bytes to samples. A trailing odd byte is dropped.
func PCMToSamples(data []byte) []int16 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}

	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}

// SamplesToPCM converts samples to S16LE bytes.
func SamplesToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out
}
