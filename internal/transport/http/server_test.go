package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/relay"
)

type testServer struct {
	*httptest.Server
	registry *registry.Registry
	hub      *Hub
}

// newTestServer wires the full in-memory stack. The caller's identity comes
// from the userId query parameter.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewQuizStore(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	catalog := memory.NewQuizCatalog(store, nil, time.Minute, time.Hour)
	broker := memory.NewBroker(64)
	reg := registry.New()
	hub := NewHub(16)

	quizzes := app.NewQuizService(catalog, store)
	attempts := app.NewAttemptService(catalog, memory.NewAttemptStore(), relay.NewPublisher(broker, time.Second), app.LateAnswersGrade)

	subscriber := relay.NewSubscriber(broker, reg, hub)
	go func() { _ = subscriber.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay subscriber did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	users := UserContextFunc(func(r *http.Request) (string, error) {
		if id := r.URL.Query().Get("userId"); id != "" {
			return id, nil
		}
		return "", errors.New("no user")
	})
	server := httptest.NewServer(NewRouter(NewAPI(quizzes, attempts, users), NewWSHandler(quizzes, attempts, reg, hub, users)))
	t.Cleanup(server.Close)
	return &testServer{Server: server, registry: reg, hub: hub}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Title:     "Arithmetic",
		TimeLimit: 10 * time.Minute,
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
				Text:   "What color is the sky?",
				Options: []domain.Option{
					{Text: "Blue", Correct: true},
					{Text: "Red", Correct: false},
				},
				Points: 5,
			},
		},
	}
}
