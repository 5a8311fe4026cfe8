package memory

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content, questions included, from the durable store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SharedCache is the cross-instance tier of the catalog (Redis in production).
type SharedCache interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, bool, error)
	SetQuiz(ctx context.Context, quiz domain.Quiz, ttl time.Duration) error
}

// QuizCatalog is a read-through cache with a short local expiration and a longer
// shared expiration. Concurrent misses for one quiz share a single load.
type QuizCatalog struct {
	loader    QuizLoader
	shared    SharedCache
	localTTL  time.Duration
	sharedTTL time.Duration
	clock     func() time.Time
	sf        singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

// NewQuizCatalog builds the catalog; shared may be nil for a local-only cache.
func NewQuizCatalog(loader QuizLoader, shared SharedCache, localTTL, sharedTTL time.Duration) *QuizCatalog {
	return &QuizCatalog{
		loader:    loader,
		shared:    shared,
		localTTL:  localTTL,
		sharedTTL: sharedTTL,
		clock:     time.Now,
		cache:     make(map[string]cachedQuiz),
	}
}

func (c *QuizCatalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.local(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check in case another caller filled it while we waited.
		if quiz, ok := c.local(quizID); ok {
			return quiz, nil
		}

		if c.shared != nil {
			quiz, ok, err := c.shared.GetQuiz(ctx, quizID)
			if err != nil {
				log.Printf("catalog: shared cache read for quiz %s: %v", quizID, err)
			} else if ok {
				c.store(quiz)
				return quiz, nil
			}
		}

		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Quiz{}, err
			}
			return domain.Quiz{}, domain.Infra("load quiz", err)
		}

		c.store(quiz)
		if c.shared != nil {
			if err := c.shared.SetQuiz(ctx, quiz, withJitter(c.sharedTTL)); err != nil {
				log.Printf("catalog: shared cache write for quiz %s: %v", quizID, err)
			}
		}
		log.Printf("catalog: quiz %s loaded from store and cached", quizID)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCatalog) local(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (c *QuizCatalog) store(quiz domain.Quiz) {
	c.mu.Lock()
	c.cache[quiz.ID] = cachedQuiz{
		quiz:      quiz,
		expiresAt: c.clock().Add(withJitter(c.localTTL)),
	}
	c.mu.Unlock()
}

// withJitter adds up to 10% to ttl to spread expirations.
func withJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int63n(jitterMax+1))
}
