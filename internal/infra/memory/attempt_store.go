package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// The index lock is held only for map access; each attempt has its own lock so
// answers to unrelated attempts never wait on each other.
type AttemptStore struct {
	mu         sync.RWMutex
	byID       map[string]*attemptEntry
	byUserQuiz map[string][]string
}

type attemptEntry struct {
	mu      sync.Mutex
	attempt *domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:       make(map[string]*attemptEntry),
		byUserQuiz: make(map[string][]string),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, a *domain.Attempt) error {
	key := userQuizKey(a.UserID, a.QuizID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return domain.Invalid("attempt %s already exists", a.ID)
	}
	for _, id := range s.byUserQuiz[key] {
		entry := s.byID[id]
		entry.mu.Lock()
		active := entry.attempt.Status == domain.StatusInProgress
		entry.mu.Unlock()
		if active {
			return domain.ErrActiveAttemptExists
		}
	}
	s.byID[a.ID] = &attemptEntry{attempt: a.Clone()}
	s.byUserQuiz[key] = append(s.byUserQuiz[key], a.ID)
	return nil
}

func (s *AttemptStore) LatestAttempt(_ context.Context, userID, quizID string) (*domain.Attempt, error) {
	s.mu.RLock()
	ids := s.byUserQuiz[userQuizKey(userID, quizID)]
	if len(ids) == 0 {
		s.mu.RUnlock()
		return nil, domain.ErrAttemptNotFound
	}
	entry := s.byID[ids[len(ids)-1]]
	s.mu.RUnlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.attempt.Clone(), nil
}

// RecordAnswer stores an answered QuestionAttempt unless that question was
// already answered, and returns the attempt's total afterwards.
func (s *AttemptStore) RecordAnswer(_ context.Context, attemptID string, qa domain.QuestionAttempt) (int, error) {
	entry, ok := s.entry(attemptID)
	if !ok {
		return 0, domain.ErrAttemptNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	stored, ok := entry.attempt.QuestionAttempt(qa.QuestionID)
	if !ok {
		return 0, domain.ErrQuestionNotFound
	}
	if stored.Answered {
		return 0, domain.ErrAlreadyAnswered
	}
	id := stored.ID
	*stored = qa.Clone()
	stored.ID = id
	stored.AttemptID = attemptID
	return entry.attempt.TotalPointsEarned(), nil
}

// UpdateStatus persists a terminal transition; only an in-progress attempt may move.
func (s *AttemptStore) UpdateStatus(_ context.Context, a *domain.Attempt) error {
	entry, ok := s.entry(a.ID)
	if !ok {
		return domain.ErrAttemptNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.attempt.Status != domain.StatusInProgress {
		return domain.ErrAttemptNotInProgress
	}
	entry.attempt.Status = a.Status
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		entry.attempt.CompletedAt = &t
	}
	return nil
}

// ListOverdue returns in-progress attempts whose deadline passed, oldest first.
func (s *AttemptStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	s.mu.RLock()
	entries := make([]*attemptEntry, 0, len(s.byID))
	for _, entry := range s.byID {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	var overdue []*domain.Attempt
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.attempt.Overdue(now) {
			overdue = append(overdue, entry.attempt.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].ExpiresAt.Before(overdue[j].ExpiresAt)
	})
	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}
	return overdue, nil
}

func (s *AttemptStore) entry(attemptID string) (*attemptEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byID[attemptID]
	return entry, ok
}

func userQuizKey(userID, quizID string) string {
	return userID + "|" + quizID
}
