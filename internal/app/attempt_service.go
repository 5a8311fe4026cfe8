package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

// AttemptRepository abstracts how attempts are stored (in-memory, Postgres).
// RecordAnswer and UpdateStatus are compare-and-set operations: an answered
// question or a terminal attempt is never overwritten.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, a *domain.Attempt) error
	LatestAttempt(ctx context.Context, userID, quizID string) (*domain.Attempt, error)
	RecordAnswer(ctx context.Context, attemptID string, qa domain.QuestionAttempt) (int, error)
	UpdateStatus(ctx context.Context, a *domain.Attempt) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error)
}

// EventPublisher is fire-and-forget; it never reports failure to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ScoringEvent)
}

// LateAnswerPolicy decides what happens to an answer submitted after the deadline.
type LateAnswerPolicy string

const (
	// LateAnswersGrade grades late answers normally.
	LateAnswersGrade LateAnswerPolicy = "grade"
	// LateAnswersReject expires the attempt and refuses the answer.
	LateAnswersReject LateAnswerPolicy = "reject"
)

// ParseLateAnswerPolicy maps a config value; empty means grade.
func ParseLateAnswerPolicy(raw string) (LateAnswerPolicy, error) {
	switch LateAnswerPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LateAnswersGrade:
		return LateAnswersGrade, nil
	case LateAnswersReject:
		return LateAnswersReject, nil
	}
	return "", domain.Invalid("unknown late answer policy %q", raw)
}

const overdueBatch = 100

// AttemptService contains the attempt use cases.
type AttemptService struct {
	quizzes  QuizCatalog
	attempts AttemptRepository
	events   EventPublisher
	late     LateAnswerPolicy
	now      func() time.Time
}

func NewAttemptService(quizzes QuizCatalog, attempts AttemptRepository, events EventPublisher, late LateAnswerPolicy) *AttemptService {
	return NewAttemptServiceWithClock(quizzes, attempts, events, late, time.Now)
}

// NewAttemptServiceWithClock is used by tests for deterministic deadlines.
func NewAttemptServiceWithClock(quizzes QuizCatalog, attempts AttemptRepository, events EventPublisher, late LateAnswerPolicy, now func() time.Time) *AttemptService {
	if late == "" {
		late = LateAnswersGrade
	}
	return &AttemptService{quizzes: quizzes, attempts: attempts, events: events, late: late, now: now}
}

// AnswerResult is returned to the submitting user.
type AnswerResult struct {
	domain.Evaluation
	AttemptID         string `json:"attemptId"`
	TotalPointsEarned int    `json:"totalPointsEarned"`
}

// AttemptView is the read model of an attempt.
type AttemptView struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"userId"`
	QuizID            string                   `json:"quizId"`
	Status            domain.AttemptStatus     `json:"status"`
	StartedAt         time.Time                `json:"startedAt"`
	ExpiresAt         time.Time                `json:"expiresAt"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	TotalPointsEarned int                      `json:"totalPointsEarned"`
	AnsweredCount     int                      `json:"answeredCount"`
	TotalQuestions    int                      `json:"totalQuestions"`
	NextQuestionID    string                   `json:"nextQuestionId,omitempty"`
	Questions         []domain.QuestionAttempt `json:"questions"`
}

// NewAttemptView flattens an attempt for clients.
func NewAttemptView(a *domain.Attempt) AttemptView {
	view := AttemptView{
		ID:                a.ID,
		UserID:            a.UserID,
		QuizID:            a.QuizID,
		Status:            a.Status,
		StartedAt:         a.StartedAt,
		ExpiresAt:         a.ExpiresAt,
		CompletedAt:       a.CompletedAt,
		TotalPointsEarned: a.TotalPointsEarned(),
		TotalQuestions:    len(a.Questions),
		Questions:         a.Questions,
	}
	for _, qa := range a.Questions {
		if qa.Answered {
			view.AnsweredCount++
		}
	}
	if next, ok := a.NextUnanswered(); ok {
		view.NextQuestionID = next.QuestionID
	}
	return view
}

// StartAttempt returns the user's in-progress attempt for the quiz, creating one
// when none exists. An overdue attempt is expired first.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID string) (*domain.Attempt, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user id cannot be empty")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	existing, err := s.attempts.LatestAttempt(ctx, userID, quizID)
	switch {
	case err == nil && existing.Status == domain.StatusInProgress:
		if !existing.Overdue(now) {
			return existing, nil
		}
		if err := s.expire(ctx, existing, now); err != nil {
			return nil, err
		}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	attempt, err := domain.NewAttempt(userID, &quiz, now)
	if err != nil {
		return nil, err
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrActiveAttemptExists) {
			// Lost a race with a concurrent start; the winner's attempt is the one to use.
			return s.attempts.LatestAttempt(ctx, userID, quizID)
		}
		return nil, err
	}
	log.Printf("attempts: user %s started attempt %s on quiz %s", userID, attempt.ID, quizID)
	return attempt, nil
}

// CurrentAttempt returns the user's latest attempt for the quiz.
func (s *AttemptService) CurrentAttempt(ctx context.Context, userID, quizID string) (*domain.Attempt, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user id cannot be empty")
	}
	return s.attempts.LatestAttempt(ctx, userID, quizID)
}

// SubmitAnswer grades an answer on the user's latest attempt, stores it and
// publishes a scoring event for a correct answer.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID, quizID, questionID, answer string) (AnswerResult, error) {
	if strings.TrimSpace(questionID) == "" {
		return AnswerResult{}, domain.Invalid("question id cannot be empty")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AnswerResult{}, err
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return AnswerResult{}, domain.ErrQuestionNotFound
	}
	attempt, err := s.CurrentAttempt(ctx, userID, quizID)
	if err != nil {
		return AnswerResult{}, err
	}

	now := s.now()
	if err := s.checkAnswerable(ctx, attempt, now); err != nil {
		return AnswerResult{}, err
	}

	eval, err := attempt.SubmitAnswer(question, answer, now, scoring.ForQuiz(quiz))
	if err != nil {
		return AnswerResult{}, err
	}
	qa, _ := attempt.QuestionAttempt(questionID)
	total, err := s.attempts.RecordAnswer(ctx, attempt.ID, *qa)
	if err != nil {
		return AnswerResult{}, err
	}

	if eval.Correct {
		s.events.Publish(context.WithoutCancel(ctx), domain.ScoringEvent{
			UserID:            userID,
			QuizID:            quizID,
			QuestionID:        questionID,
			IsCorrect:         true,
			PointsEarned:      eval.PointsEarned,
			TotalPointsEarned: total,
		})
	}

	return AnswerResult{Evaluation: eval, AttemptID: attempt.ID, TotalPointsEarned: total}, nil
}

// Complete finishes the user's in-progress attempt.
func (s *AttemptService) Complete(ctx context.Context, userID, quizID string) (*domain.Attempt, error) {
	return s.finish(ctx, userID, quizID, (*domain.Attempt).Complete)
}

// Abandon gives up the user's in-progress attempt.
func (s *AttemptService) Abandon(ctx context.Context, userID, quizID string) (*domain.Attempt, error) {
	return s.finish(ctx, userID, quizID, (*domain.Attempt).Abandon)
}

// ExpireOverdue marks every overdue in-progress attempt expired and returns how many moved.
func (s *AttemptService) ExpireOverdue(ctx context.Context) (int, error) {
	expired := 0
	for {
		now := s.now()
		batch, err := s.attempts.ListOverdue(ctx, now, overdueBatch)
		if err != nil {
			return expired, err
		}
		moved := 0
		for _, attempt := range batch {
			if !attempt.MarkExpired(now) {
				continue
			}
			err := s.attempts.UpdateStatus(ctx, attempt)
			switch {
			case err == nil:
				moved++
			case errors.Is(err, domain.ErrAttemptNotInProgress):
				// finished concurrently
			default:
				return expired + moved, err
			}
		}
		expired += moved
		if len(batch) < overdueBatch || moved == 0 {
			return expired, nil
		}
	}
}

func (s *AttemptService) finish(ctx context.Context, userID, quizID string, transition func(*domain.Attempt, time.Time) error) (*domain.Attempt, error) {
	attempt, err := s.CurrentAttempt(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.late == LateAnswersReject && attempt.Overdue(now) {
		if err := s.expire(ctx, attempt, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrAttemptExpired
	}
	if err := transition(attempt, now); err != nil {
		return nil, err
	}
	if err := s.attempts.UpdateStatus(ctx, attempt); err != nil {
		return nil, err
	}
	log.Printf("attempts: attempt %s of user %s is %s", attempt.ID, userID, attempt.Status)
	return attempt, nil
}

// checkAnswerable applies the late answer policy. Completed and abandoned
// attempts never take answers.
func (s *AttemptService) checkAnswerable(ctx context.Context, attempt *domain.Attempt, now time.Time) error {
	switch attempt.Status {
	case domain.StatusInProgress:
		if s.late == LateAnswersReject && attempt.Overdue(now) {
			if err := s.expire(ctx, attempt, now); err != nil {
				return err
			}
			return domain.ErrAttemptExpired
		}
		return nil
	case domain.StatusExpired:
		if s.late == LateAnswersGrade {
			return nil
		}
		return domain.ErrAttemptExpired
	default:
		return domain.ErrAttemptNotInProgress
	}
}

func (s *AttemptService) expire(ctx context.Context, attempt *domain.Attempt, now time.Time) error {
	if !attempt.MarkExpired(now) {
		return nil
	}
	if err := s.attempts.UpdateStatus(ctx, attempt); err != nil && !errors.Is(err, domain.ErrAttemptNotInProgress) {
		return err
	}
	log.Printf("attempts: attempt %s of user %s expired", attempt.ID, attempt.UserID)
	return nil
}
