package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestCreateQuizAndSummary(t *testing.T) {
	ctx := context.Background()
	service := newQuizService()

	quiz, err := service.CreateQuiz(ctx, app.NewQuizInput{
		Title:       "  Capitals ",
		Description: "European capitals",
		TimeLimit:   5 * time.Minute,
		ScoringType: domain.ScoringStreak,
		Questions: []app.NewQuestionInput{
			{Text: "Capital of France?", Points: 3, Options: []domain.Option{{Text: "Paris", Correct: true}, {Text: "Lyon"}}},
			{Text: "Capital of Spain?", Points: 2, Options: []domain.Option{{Text: "Madrid", Correct: true}}},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if quiz.ID == "" || quiz.Title != "Capitals" || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}

	summary, err := service.Summary(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalQuestions != 2 || summary.TotalPoints != 5 || summary.TimeLimitSeconds != 300 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.ScoringType != domain.ScoringStreak {
		t.Fatalf("expected streak scoring, got %s", summary.ScoringType)
	}
	if got := summary.Questions[0].Options; len(got) != 2 || got[0] != "Paris" {
		t.Fatalf("unexpected options %v", got)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	ctx := context.Background()
	service := newQuizService()

	cases := map[string]app.NewQuizInput{
		"empty title":  {Title: " ", TimeLimit: time.Minute, Questions: []app.NewQuestionInput{{Text: "q", Options: []domain.Option{{Text: "a", Correct: true}}}}},
		"no limit":     {Title: "t", Questions: []app.NewQuestionInput{{Text: "q", Options: []domain.Option{{Text: "a", Correct: true}}}}},
		"no questions": {Title: "t", TimeLimit: time.Minute},
		"no correct":   {Title: "t", TimeLimit: time.Minute, Questions: []app.NewQuestionInput{{Text: "q", Options: []domain.Option{{Text: "a"}}}}},
		"bad scoring":  {Title: "t", TimeLimit: time.Minute, ScoringType: "random", Questions: []app.NewQuestionInput{{Text: "q", Options: []domain.Option{{Text: "a", Correct: true}}}}},
		"negative pts": {Title: "t", TimeLimit: time.Minute, Questions: []app.NewQuestionInput{{Text: "q", Points: -1, Options: []domain.Option{{Text: "a", Correct: true}}}}},
		"dup options":  {Title: "t", TimeLimit: time.Minute, Questions: []app.NewQuestionInput{{Text: "q", Options: []domain.Option{{Text: "a", Correct: true}, {Text: "A"}}}}},
	}
	for name, in := range cases {
		if _, err := service.CreateQuiz(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestSummaryNotFound(t *testing.T) {
	service := newQuizService()
	if _, err := service.Summary(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newQuizService() *app.QuizService {
	store := memory.NewQuizStore(nil)
	catalog := memory.NewQuizCatalog(store, nil, time.Minute, time.Hour)
	return app.NewQuizService(catalog, store)
}
