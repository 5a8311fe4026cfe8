package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// QuizStore is a map-backed quiz store (useful for tests/demos).
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore(quizzes map[string]domain.Quiz) *QuizStore {
	cp := make(map[string]domain.Quiz, len(quizzes))
	for id, quiz := range quizzes {
		cp[id] = quiz
	}
	return &QuizStore{quizzes: cp}
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *QuizStore) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.Invalid("quiz %s already exists", quiz.ID)
	}
	s.quizzes[quiz.ID] = quiz
	return nil
}
