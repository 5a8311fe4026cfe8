package redis

import (
	"context"
	"log"
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/relay"
	"github.com/redis/go-redis/v9"
)

// Broker implements relay.Broker on Redis pub/sub so scoring events reach
// connections held by any instance. Delivery is at-most-once.
type Broker struct {
	client *redis.Client
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return domain.Infra("redis publish", err)
	}
	return nil
}

// Subscribe pattern-subscribes to prefix*suffix and re-checks every channel
// against the filter, since a glob can match more than the filter does.
func (b *Broker) Subscribe(ctx context.Context, filter relay.TopicFilter) (relay.Subscription, error) {
	ps := b.client.PSubscribe(ctx, filter.Prefix+"*"+filter.Suffix)
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, domain.Infra("redis psubscribe", err)
	}

	sub := &subscription{ps: ps, out: make(chan relay.Message, 64)}
	go sub.pump(filter)
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	out  chan relay.Message
	once sync.Once
	err  error
}

func (s *subscription) pump(filter relay.TopicFilter) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		if !filter.Match(msg.Channel) {
			continue
		}
		select {
		case s.out <- relay.Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
		default:
			log.Printf("redis broker: subscriber behind, dropping message on %s", msg.Channel)
		}
	}
}

func (s *subscription) Messages() <-chan relay.Message {
	return s.out
}

// Close stops the subscription; Messages is closed once pending deliveries drain.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}
