package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/relay"
)

// Broker is an in-process relay.Broker for single-instance deployments and tests.
// Delivery is at-most-once: a slow subscriber loses messages instead of blocking publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{subs: make(map[*subscription]struct{}), buffer: buffer}
}

func (b *Broker) Publish(_ context.Context, topic string, payload []byte) error {
	msg := relay.Message{Topic: topic, Payload: append([]byte(nil), payload...)}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.filter.Match(topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// subscriber is behind, drop
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, filter relay.TopicFilter) (relay.Subscription, error) {
	sub := &subscription{
		broker: b,
		filter: filter,
		ch:     make(chan relay.Message, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return sub, nil
}

type subscription struct {
	broker *Broker
	filter relay.TopicFilter
	ch     chan relay.Message
	once   sync.Once
}

func (s *subscription) Messages() <-chan relay.Message {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.ch)
		s.broker.mu.Unlock()
	})
	return nil
}

// Subscribers reports the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
