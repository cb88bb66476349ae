// Package eventbus fans events out to buffered subscribers.
package eventbus

import "sync"

// Bus is a publish/subscribe bus for events of type T. Publish never
// blocks: a subscriber whose buffer is full misses the event and its drop
// count grows.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []*subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	ch      chan T
	mu      sync.Mutex
	dropped int
}

// New creates a Bus.
func New[T any]() *Bus[T] { return &Bus[T]{} }

// Publish delivers e to every subscriber with room for it.
func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

// Subscribe registers a subscriber with a buffer of 8 events.
func (b *Bus[T]) Subscribe() <-chan T { return b.SubscribeBuffer(8) }

// SubscribeBuffer registers a subscriber whose channel holds size events.
func (b *Bus[T]) SubscribeBuffer(size int) <-chan T {
	if size < 1 {
		size = 1
	}
	s := &subscriber[T]{ch: make(chan T, size)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch
	}
	b.subs = append(b.subs, s)
	return s.ch
}

// Dropped returns and clears the number of events sub missed.
func (b *Bus[T]) Dropped(sub <-chan T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.ch == sub {
			s.mu.Lock()
			n := s.dropped
			s.dropped = 0
			s.mu.Unlock()
			return n
		}
	}
	return 0
}

// Unsubscribe removes sub and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
