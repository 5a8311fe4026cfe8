// Package relay carries scoring events from the answer path to connected clients
// through a pub/sub broker.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

const (
	topicPrefix = "quiz:"
	topicSuffix = ":points"

	// EventPointsUpdated is pushed to the user who answered.
	EventPointsUpdated = "pointsUpdated"
	// EventLeaderboardUpdated is broadcast to everyone in the quiz room.
	EventLeaderboardUpdated = "leaderboardUpdated"
)

// Topic returns the points topic for quizID.
func Topic(quizID string) string {
	return topicPrefix + quizID + topicSuffix
}

// PointsTopics matches every quiz points topic.
var PointsTopics = TopicFilter{Prefix: topicPrefix, Suffix: topicSuffix}

// TopicFilter selects topics by prefix and suffix so subscriptions do not depend
// on a broker's wildcard syntax.
type TopicFilter struct {
	Prefix string
	Suffix string
}

// Match reports whether topic starts with Prefix and ends with Suffix without overlap.
func (f TopicFilter) Match(topic string) bool {
	return len(topic) >= len(f.Prefix)+len(f.Suffix) &&
		strings.HasPrefix(topic, f.Prefix) &&
		strings.HasSuffix(topic, f.Suffix)
}

// Message is one delivery from a broker.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription streams messages until closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Broker is an at-most-once pub/sub transport.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, filter TopicFilter) (Subscription, error)
}

// Publisher serializes scoring events onto the broker.
type Publisher struct {
	broker  Broker
	timeout time.Duration
}

// NewPublisher bounds each publish by timeout; zero means no extra bound.
func NewPublisher(broker Broker, timeout time.Duration) *Publisher {
	return &Publisher{broker: broker, timeout: timeout}
}

// Publish is fire-and-forget: failures are logged and never returned to the scoring path.
func (p *Publisher) Publish(ctx context.Context, event domain.ScoringEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("relay: encode event for quiz %s: %v", event.QuizID, err)
		return
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.broker.Publish(ctx, Topic(event.QuizID), payload); err != nil {
		log.Printf("relay: publish event for user %s in quiz %s: %v", event.UserID, event.QuizID, domain.Infra("publish", err))
		return
	}
	log.Printf("relay: event published for user %s in quiz %s", event.UserID, event.QuizID)
}
