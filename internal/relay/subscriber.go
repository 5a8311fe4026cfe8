package relay

import (
	"context"
	"encoding/json"
	"log"

	"live-quiz-service/internal/domain"
)

// Connections is the read side of the connection registry.
type Connections interface {
	ConnectionForUser(userID string) (domain.Connection, bool)
	ConnectionsInRoom(quizID string) []string
}

// Pusher delivers events to live connections. SendToConnections must attempt
// every recipient even when some fail.
type Pusher interface {
	SendToConnection(connectionID, event string, payload any) error
	SendToConnections(connectionIDs []string, event string, payload any) error
}

// PointsUpdate is pushed to the answering user.
type PointsUpdate struct {
	UserID            string `json:"userId"`
	QuizID            string `json:"quizId"`
	QuestionID        string `json:"questionId"`
	IsCorrect         bool   `json:"isCorrect"`
	PointsEarned      int    `json:"pointsEarned"`
	TotalPointsEarned int    `json:"totalPointsEarned"`
}

// LeaderboardUpdate is broadcast to the quiz room.
type LeaderboardUpdate struct {
	UserID            string `json:"userId"`
	TotalPointsEarned int    `json:"totalPointsEarned"`
}

// Subscriber fans scoring events out to the registry's connections.
type Subscriber struct {
	broker      Broker
	connections Connections
	pusher      Pusher
}

func NewSubscriber(broker Broker, connections Connections, pusher Pusher) *Subscriber {
	return &Subscriber{broker: broker, connections: connections, pusher: pusher}
}

// Run consumes every quiz points topic until ctx is done or the subscription closes.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.broker.Subscribe(ctx, PointsTopics)
	if err != nil {
		return domain.Infra("subscribe points topics", err)
	}
	defer sub.Close()
	log.Printf("relay: subscriber started")

	for {
		select {
		case <-ctx.Done():
			log.Printf("relay: subscriber stopped")
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			var event domain.ScoringEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Printf("relay: drop malformed message on %s: %v", msg.Topic, err)
				continue
			}
			s.Deliver(event)
		}
	}
}

// Deliver performs the targeted push and the room broadcast independently.
// Missing connections are a no-op.
func (s *Subscriber) Deliver(event domain.ScoringEvent) {
	if conn, ok := s.connections.ConnectionForUser(event.UserID); ok {
		err := s.pusher.SendToConnection(conn.ID, EventPointsUpdated, PointsUpdate{
			UserID:            event.UserID,
			QuizID:            event.QuizID,
			QuestionID:        event.QuestionID,
			IsCorrect:         event.IsCorrect,
			PointsEarned:      event.PointsEarned,
			TotalPointsEarned: event.TotalPointsEarned,
		})
		if err != nil {
			log.Printf("relay: push points to user %s on %s: %v", event.UserID, conn.ID, err)
		}
	}

	room := s.connections.ConnectionsInRoom(event.QuizID)
	if len(room) == 0 {
		return
	}
	err := s.pusher.SendToConnections(room, EventLeaderboardUpdated, LeaderboardUpdate{
		UserID:            event.UserID,
		TotalPointsEarned: event.TotalPointsEarned,
	})
	if err != nil {
		log.Printf("relay: leaderboard broadcast for quiz %s: %v", event.QuizID, err)
	}
}
