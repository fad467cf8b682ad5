package audio

import (
	"errors"
	"sync"
)

var (
	// ErrBufferFrozen is returned when appending to a frozen buffer.
	ErrBufferFrozen = errors.New("chunk buffer is frozen")
	// ErrBufferNotFrozen is returned when assembling a buffer still accepting chunks.
	ErrBufferNotFrozen = errors.New("chunk buffer is not frozen")
	// ErrBufferReleased is returned when reading a released buffer.
	ErrBufferReleased = errors.New("chunk buffer has been released")
)

// ChunkBuffer accumulates chunks in arrival order for one recording session.
// Appends are only accepted until Freeze. Release drops the stored data.
type ChunkBuffer struct {
	mu       sync.RWMutex
	chunks   [][]byte
	size     int
	frozen   bool
	released bool
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append stores data. The buffer takes ownership of the slice. Empty chunks
// are ignored.
func (b *ChunkBuffer) Append(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return ErrBufferFrozen
	}

	if len(data) == 0 {
		return nil
	}

	b.chunks = append(b.chunks, data)
	b.size += len(data)

	return nil
}

// Freeze stops accepting chunks. Idempotent.
func (b *ChunkBuffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true
}

func (b *ChunkBuffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.frozen
}

// Len is the number of stored chunks.
func (b *ChunkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.chunks)
}

// Size is the total number of stored bytes.
func (b *ChunkBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.size
}

// Bytes concatenates all chunks in append order into a single payload.
func (b *ChunkBuffer) Bytes() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.released {
		return nil, ErrBufferReleased
	}

	if !b.frozen {
		return nil, ErrBufferNotFrozen
	}

	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}

	return out, nil
}

// Release drops all stored chunks. The buffer stays frozen afterwards.
func (b *ChunkBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = nil
	b.size = 0
	b.frozen = true
	b.released = true
}

func (b *ChunkBuffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.released
}
