// Package eventbus implements an in-process publish/subscribe bus for
// ChangeEvents. Each subscriber gets its own bounded queue, which
// Publish fills directly on the caller's goroutine (there is no separate
// dispatch goroutine); events are delivered to a given subscriber in the
// order they were published, and a slow subscriber drops its oldest
// queued event rather than blocking the publisher.
package eventbus

import (
	"sync"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// DefaultBufferSize is the per-subscriber queue depth used when none is
// specified.
const DefaultBufferSize = 64

// Bus fans a stream of ChangeEvents out to any number of subscribers.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	bufferSize  int
}

type subscriber struct {
	queue   chan domain.ChangeEvent
	dropped uint64
	mu      sync.Mutex
}

// New constructs a Bus with the given per-subscriber buffer size.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{subscribers: make(map[string]*subscriber), bufferSize: bufferSize}
}

// Subscribe registers a named subscriber and returns a channel of
// events plus an unsubscribe function. Re-subscribing with the same
// name replaces the previous subscriber and closes its channel.
func (b *Bus) Subscribe(name string) (<-chan domain.ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[name]; ok {
		close(old.queue)
	}
	sub := &subscriber{queue: make(chan domain.ChangeEvent, b.bufferSize)}
	b.subscribers[name] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if current, ok := b.subscribers[name]; ok && current == sub {
			close(sub.queue)
			delete(b.subscribers, name)
		}
	}
	return sub.queue, unsubscribe
}

// Publish delivers an event to every current subscriber. Delivery never
// blocks: a subscriber whose queue is full has its oldest pending event
// dropped to make room, preserving per-target ordering for whatever
// remains queued.
func (b *Bus) Publish(event domain.ChangeEvent) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (s *subscriber) deliver(event domain.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case s.queue <- event:
			return
		default:
			select {
			case <-s.queue:
				s.dropped++
			default:
			}
		}
	}
}

// DroppedCount reports how many events a subscriber has had to drop due
// to queue overflow, for diagnostics.
func (b *Bus) DroppedCount(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[name]; ok {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.dropped
	}
	return 0
}
