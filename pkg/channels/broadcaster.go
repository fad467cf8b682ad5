package channels

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type subscriber[T any] struct {
	ch       chan<- T
	timeout  time.Duration // zero means non-blocking
	inactive atomic.Bool
	dropped  atomic.Int32
}

func (s *subscriber[T]) send(msg T) {
	if s.inactive.Load() {
		s.dropped.Add(1)
		return
	}

	var err error
	if s.timeout > 0 {
		err = SendWithTimeout(s.ch, msg, s.timeout)
	} else {
		err = SendNonBlock(s.ch, msg)
	}

	if err != nil {
		s.dropped.Add(1)
		if errors.Is(err, ErrChannelClosed) {
			s.inactive.Store(true)
		}
	}
}

// Broadcaster delivers each published message to every current subscriber.
//
// Subscribers may join or leave at any time. Delivery per subscriber is either
// non-blocking (messages dropped when the channel is full) or bounded by a
// send timeout. A subscriber whose channel was closed is marked inactive and
// skipped. Subscriber channels are owned by the caller and never closed here.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber[T]
	order  []int
	nextID int
	closed bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]*subscriber[T])}
}

// Subscribe registers ch for non-blocking delivery and returns a func that
// removes it again.
func (b *Broadcaster[T]) Subscribe(ch chan<- T) (func(), error) {
	return b.add(ch, 0)
}

// SubscribeWithTimeout registers ch, waiting up to timeout for each send.
func (b *Broadcaster[T]) SubscribeWithTimeout(ch chan<- T, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}

	return b.add(ch, timeout)
}

func (b *Broadcaster[T]) add(ch chan<- T, timeout time.Duration) (func(), error) {
	if ch == nil {
		return nil, ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber[T]{ch: ch, timeout: timeout}
	b.order = append(b.order, id)

	var once sync.Once

	return func() { once.Do(func() { b.remove(id) }) }, nil
}

func (b *Broadcaster[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish sends msg to all subscribers in subscription order.
// Calls after Close are ignored.
func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, id := range b.order {
		b.subs[id].send(msg)
	}
}

// Len is the number of current subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.order)
}

// Close drops every subscriber and rejects further subscriptions.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[int]*subscriber[T])
	b.order = nil
}

type SubscriberStats struct {
	Dropped  int
	Inactive bool
}

// Stats reports per-subscriber delivery stats in subscription order.
func (b *Broadcaster[T]) Stats() []SubscriberStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make([]SubscriberStats, 0, len(b.order))
	for _, id := range b.order {
		s := b.subs[id]
		stats = append(stats, SubscriberStats{
			Dropped:  int(s.dropped.Load()),
			Inactive: s.inactive.Load(),
		})
	}

	return stats
}
