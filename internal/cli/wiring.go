package cli

import (
	"context"
	"log"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/relay"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

type quizStore interface {
	memory.QuizLoader
	app.QuizWriter
}

// components are the services shared by every command.
type components struct {
	quizzes  *app.QuizService
	attempts *app.AttemptService
	broker   relay.Broker
	closers  []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// buildComponents picks Postgres and Redis when configured and falls back to
// in-memory adapters otherwise.
func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{}

	late, err := app.ParseLateAnswerPolicy(cfg.Attempts.LateAnswers)
	if err != nil {
		return nil, err
	}

	var (
		quizzes  quizStore
		attempts app.AttemptRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, domain.Infra("connect postgres", err)
		}
		c.closers = append(c.closers, pool.Close)
		quizzes = postgres.NewQuizStore(pool)
		attempts = postgres.NewAttemptStore(pool)
	} else {
		log.Printf("postgres not configured, using in-memory stores with a sample quiz")
		quizzes = memory.NewQuizStore(sampleQuizzes())
		attempts = memory.NewAttemptStore()
	}

	var shared memory.SharedCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			c.Close()
			return nil, domain.Infra("ping redis", err)
		}
		shared = infraredis.NewQuizCache(client)
		c.broker = infraredis.NewBroker(client)
	} else {
		log.Printf("redis not configured, using in-process broker and local-only quiz cache")
		c.broker = memory.NewBroker(256)
	}

	catalog := memory.NewQuizCatalog(
		quizzes,
		shared,
		config.TTLDuration(cfg.Cache.LocalTTL, 30*time.Minute),
		config.TTLDuration(cfg.Cache.SharedTTL, 24*time.Hour),
	)
	publisher := relay.NewPublisher(c.broker, config.TTLDuration(cfg.Relay.PublishTimeout, 2*time.Second))

	c.quizzes = app.NewQuizService(catalog, quizzes)
	c.attempts = app.NewAttemptService(catalog, attempts, publisher, late)
	return c, nil
}

// sampleQuizzes seeds the in-memory store so the service is usable without a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Warm-up",
			Description: "Two quick questions",
			TimeLimit:   10 * time.Minute,
			ScoringType: domain.ScoringSimple,
			Questions: []domain.Question{
				{
					ID:     "q1",
					QuizID: "quiz-1",
					Text:   "What is 2 + 2?",
					Options: []domain.Option{
						{Text: "3", Correct: false},
						{Text: "4", Correct: true},
						{Text: "5", Correct: false},
					},
					Points: 10,
				},
				{
					ID:     "q2",
					QuizID: "quiz-1",
					Text:   "What color is a clear daytime sky?",
					Options: []domain.Option{
						{Text: "Blue", Correct: true},
						{Text: "Green", Correct: false},
					},
					Points: 5,
				},
			},
		},
	}
}
