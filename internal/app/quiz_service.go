package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"
)

// QuizCatalog loads quiz content (from cache/backing store).
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizWriter persists a new quiz with its questions atomically.
type QuizWriter interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizService contains the quiz management use cases.
type QuizService struct {
	catalog QuizCatalog
	writer  QuizWriter
}

func NewQuizService(catalog QuizCatalog, writer QuizWriter) *QuizService {
	return &QuizService{catalog: catalog, writer: writer}
}

// NewQuizInput describes a quiz to create.
type NewQuizInput struct {
	Title       string
	Description string
	TimeLimit   time.Duration
	ScoringType domain.ScoringType
	Questions   []NewQuestionInput
}

type NewQuestionInput struct {
	Text    string
	Points  int
	Options []domain.Option
}

// QuizSummary is the public view of a quiz. Option correctness is never exposed.
type QuizSummary struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	TimeLimitSeconds int                `json:"timeLimitSeconds"`
	ScoringType      domain.ScoringType `json:"scoringType"`
	TotalQuestions   int                `json:"totalQuestions"`
	TotalPoints      int                `json:"totalPoints"`
	Questions        []QuestionSummary  `json:"questions"`
}

type QuestionSummary struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Points  int      `json:"points"`
	Options []string `json:"options"`
}

// CreateQuiz builds the aggregate through its constructors and stores it.
func (s *QuizService) CreateQuiz(ctx context.Context, in NewQuizInput) (domain.Quiz, error) {
	quiz, err := domain.NewQuiz(in.Title, in.Description, in.TimeLimit)
	if err != nil {
		return domain.Quiz{}, err
	}
	if in.ScoringType != "" {
		if !in.ScoringType.Valid() {
			return domain.Quiz{}, domain.Invalid("unknown scoring type %q", in.ScoringType)
		}
		quiz.ScoringType = in.ScoringType
	}
	if len(in.Questions) == 0 {
		return domain.Quiz{}, domain.Invalid("quiz needs at least one question")
	}
	for i, q := range in.Questions {
		question, err := domain.NewQuestion(quiz.ID, q.Text, q.Points, q.Options...)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		if err := quiz.AddQuestion(question); err != nil {
			return domain.Quiz{}, err
		}
	}

	if err := s.writer.CreateQuiz(ctx, quiz); err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInfrastructure) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, domain.Infra("create quiz", err)
	}
	return quiz, nil
}

// Summary returns the public view of a quiz.
func (s *QuizService) Summary(ctx context.Context, quizID string) (QuizSummary, error) {
	if quizID == "" {
		return QuizSummary{}, domain.Invalid("quiz id cannot be empty")
	}
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizSummary{}, err
	}
	return summarize(quiz), nil
}

func summarize(quiz domain.Quiz) QuizSummary {
	scoring := quiz.ScoringType
	if scoring == "" {
		scoring = domain.ScoringSimple
	}
	summary := QuizSummary{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		TimeLimitSeconds: int(quiz.TimeLimit / time.Second),
		ScoringType:      scoring,
		TotalQuestions:   len(quiz.Questions),
		TotalPoints:      quiz.TotalPoints(),
		Questions:        make([]QuestionSummary, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o.Text)
		}
		summary.Questions = append(summary.Questions, QuestionSummary{
			ID:      q.ID,
			Text:    q.Text,
			Points:  q.Points,
			Options: options,
		})
	}
	return summary
}
