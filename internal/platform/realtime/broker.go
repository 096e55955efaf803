package realtime

import (
	"log/slog"
	"sync"
)

// Broker fans out events per topic (a company id) to live subscribers.
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event.
type Broker[T any] struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string]map[*subscription[T]]struct{}
}

type subscription[T any] struct {
	ch chan T
}

func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker[T]{buffer: buffer, subs: map[string]map[*subscription[T]]struct{}{}}
}

// Subscribe returns the event channel and a cancel func that must be called
// once the subscriber goes away; cancel closes the channel.
func (b *Broker[T]) Subscribe(topic string) (<-chan T, func()) {
	sub := &subscription[T]{ch: make(chan T, b.buffer)}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[*subscription[T]]struct{}{}
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], sub)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (b *Broker[T]) Publish(topic string, event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("realtime subscriber lagging, event dropped", "topic", topic)
		}
	}
}

func (b *Broker[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
