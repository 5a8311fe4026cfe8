package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuizCache is the shared tier of the quiz catalog. Each quiz is stored as one
// JSON document so every instance sees identical content:
//
//	SET quiz:cache:{quizID} <json> EX <ttl>
type QuizCache struct {
	client *redis.Client
}

func NewQuizCache(client *redis.Client) *QuizCache {
	return &QuizCache{client: client}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, bool, error) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quiz{}, false, nil
	}
	if err != nil {
		return domain.Quiz{}, false, domain.Infra("redis get quiz", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		// The catalog logs this and reloads, overwriting the entry.
		return domain.Quiz{}, false, domain.Infra("decode cached quiz", err)
	}
	return quiz, true, nil
}

func (c *QuizCache) SetQuiz(ctx context.Context, quiz domain.Quiz, ttl time.Duration) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return domain.Infra("encode quiz", err)
	}
	if err := c.client.Set(ctx, c.key(quiz.ID), raw, ttl).Err(); err != nil {
		return domain.Infra("redis set quiz", err)
	}
	return nil
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:cache:" + quizID
}
