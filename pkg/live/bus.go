// Package live fans out "something changed under this path" notifications to
// subscribers. Payloads are never carried: subscribers re-read the store.
package live

import (
	"context"
	"sync"
)

type Bus interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a channel that receives at least one value after
	// every Publish on topic. Bursts are coalesced. release must be called
	// once the subscriber is done; the channel is closed by release.
	Subscribe(topic string) (events <-chan struct{}, release func())
}

type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default: // a notification is already pending
		}
	}
	return nil
}

// PublishAll notifies every open subscription, whatever its topic.
func (b *MemoryBus) PublishAll(ctx context.Context) error {
	b.mu.Lock()
	topics := make([]string, 0, len(b.subs))
	for topic := range b.subs {
		topics = append(topics, topic)
	}
	b.mu.Unlock()

	for _, topic := range topics {
		if err := b.Publish(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan struct{}]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
		})
	}
	return ch, release
}

// Subscribers reports how many subscriptions are open on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
