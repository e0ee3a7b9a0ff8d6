// Package notify fans cache snapshots out to subscribers.
package notify

import (
	"sync"

	"github.com/tiendc/go-deepcopy"

	"github.com/mynotes/docsync/pkg/logger"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Broadcaster delivers a private deep copy of every published value to each
// subscriber. A subscriber whose channel is full misses the value; Publish
// never blocks.
type Broadcaster[T any] struct {
	name   string
	buffer int
	logger logger.Logger

	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// New creates a Broadcaster. name only appears in log records.
func New[T any](name string, buffer int, log logger.Logger) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{
		name:   name,
		buffer: buffer,
		logger: logger.OrNop(log),
		subs:   make(map[uint64]chan T),
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes
// the channel; calling it more than once is fine.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish sends a copy of v to every subscriber. A subscriber whose copy
// fails is skipped.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		var snapshot T
		if err := deepcopy.Copy(&snapshot, v); err != nil {
			b.logger.Error("Failed to copy snapshot",
				"broadcaster", b.name, "subscriber", id, "error", err)
			continue
		}
		select {
		case ch <- snapshot:
		default:
			b.logger.Warn("Subscriber channel full, dropping snapshot",
				"broadcaster", b.name, "subscriber", id)
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscribers get a closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
