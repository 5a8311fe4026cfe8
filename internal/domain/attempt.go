package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusAbandoned  AttemptStatus = "abandoned"
	StatusExpired    AttemptStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s AttemptStatus) Terminal() bool {
	return s != StatusInProgress
}

// QuestionAttempt records the answer to one question within an attempt.
// Once Answered is set the record never changes.
type QuestionAttempt struct {
	ID              string     `json:"id"`
	AttemptID       string     `json:"attemptId"`
	QuestionID      string     `json:"questionId"`
	Answered        bool       `json:"answered"`
	SubmittedAnswer *string    `json:"submittedAnswer,omitempty"`
	AnsweredAt      *time.Time `json:"answeredAt,omitempty"`
	Correct         bool       `json:"correct"`
	PointsEarned    int        `json:"pointsEarned"`
}

// Attempt is one user's timed run through one quiz.
type Attempt struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	QuizID      string            `json:"quizId"`
	StartedAt   time.Time         `json:"startedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Status      AttemptStatus     `json:"status"`
	Questions   []QuestionAttempt `json:"questions"`
}

// ScoreContext carries what a scoring policy may look at besides correctness.
type ScoreContext struct {
	Elapsed      time.Duration
	CorrectSoFar int
}

// Scorer grades a trimmed answer. Implementations must return zero points
// whenever correct is false.
type Scorer interface {
	Score(question Question, answer string, sc ScoreContext) (correct bool, points int)
}

// Evaluation is the outcome of a single answer submission.
type Evaluation struct {
	QuestionID   string    `json:"questionId"`
	Answer       string    `json:"answer"`
	Correct      bool      `json:"correct"`
	PointsEarned int       `json:"pointsEarned"`
	AnsweredAt   time.Time `json:"answeredAt"`
}

// NewAttempt starts an attempt and snapshots one QuestionAttempt per quiz question.
//
// Callers must check for an existing in-progress attempt for (userID, quiz)
// and reuse it; NewAttempt does not enforce uniqueness.
func NewAttempt(userID string, quiz *Quiz, now time.Time) (*Attempt, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, Invalid("user id cannot be empty")
	}
	if quiz == nil {
		return nil, Invalid("invalid quiz")
	}

	a := &Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizID:    quiz.ID,
		StartedAt: now,
		ExpiresAt: now.Add(quiz.TimeLimit),
		Status:    StatusInProgress,
		Questions: make([]QuestionAttempt, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		a.Questions = append(a.Questions, QuestionAttempt{
			ID:         uuid.NewString(),
			AttemptID:  a.ID,
			QuestionID: q.ID,
		})
	}
	return a, nil
}

// QuestionAttempt returns the record for questionID.
func (a *Attempt) QuestionAttempt(questionID string) (*QuestionAttempt, bool) {
	for i := range a.Questions {
		if a.Questions[i].QuestionID == questionID {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// SubmitAnswer grades answer against question and records it. First answer wins.
// Expiry is not checked here; see app.LateAnswerPolicy.
func (a *Attempt) SubmitAnswer(question Question, answer string, now time.Time, scorer Scorer) (Evaluation, error) {
	qa, ok := a.QuestionAttempt(question.ID)
	if !ok {
		return Evaluation{}, ErrQuestionNotFound
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Evaluation{}, Invalid("answer cannot be empty")
	}
	if qa.Answered {
		return Evaluation{}, ErrAlreadyAnswered
	}

	sc := ScoreContext{Elapsed: now.Sub(a.lastActivity()), CorrectSoFar: a.correctCount()}
	correct, points := scorer.Score(question, answer, sc)
	if !correct || points < 0 {
		points = 0
	}

	answeredAt := now
	qa.Answered = true
	qa.SubmittedAnswer = &answer
	qa.AnsweredAt = &answeredAt
	qa.Correct = correct
	qa.PointsEarned = points

	return Evaluation{
		QuestionID:   question.ID,
		Answer:       answer,
		Correct:      correct,
		PointsEarned: points,
		AnsweredAt:   answeredAt,
	}, nil
}

// Complete finishes an in-progress attempt.
func (a *Attempt) Complete(now time.Time) error {
	return a.finish(StatusCompleted, now)
}

// Abandon gives up an in-progress attempt.
func (a *Attempt) Abandon(now time.Time) error {
	return a.finish(StatusAbandoned, now)
}

// MarkExpired moves an in-progress attempt to Expired and reports whether it did.
// Terminal attempts are left untouched.
func (a *Attempt) MarkExpired(now time.Time) bool {
	if a.Status != StatusInProgress {
		return false
	}
	a.Status = StatusExpired
	a.CompletedAt = &now
	return true
}

func (a *Attempt) finish(status AttemptStatus, now time.Time) error {
	if a.Status != StatusInProgress {
		return ErrAttemptNotInProgress
	}
	a.Status = status
	a.CompletedAt = &now
	return nil
}

// TotalPointsEarned sums points over correct answers.
func (a *Attempt) TotalPointsEarned() int {
	total := 0
	for _, qa := range a.Questions {
		if qa.Correct {
			total += qa.PointsEarned
		}
	}
	return total
}

// Overdue reports whether an in-progress attempt is past its deadline.
func (a *Attempt) Overdue(now time.Time) bool {
	return a.Status == StatusInProgress && now.After(a.ExpiresAt)
}

// NextUnanswered returns the first question not answered yet.
func (a *Attempt) NextUnanswered() (*QuestionAttempt, bool) {
	for i := range a.Questions {
		if !a.Questions[i].Answered {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	cp := *a
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Questions = make([]QuestionAttempt, len(a.Questions))
	for i, qa := range a.Questions {
		cp.Questions[i] = qa.Clone()
	}
	return &cp
}

// Clone returns a copy that shares no pointers with qa.
func (qa QuestionAttempt) Clone() QuestionAttempt {
	if qa.SubmittedAnswer != nil {
		s := *qa.SubmittedAnswer
		qa.SubmittedAnswer = &s
	}
	if qa.AnsweredAt != nil {
		t := *qa.AnsweredAt
		qa.AnsweredAt = &t
	}
	return qa
}

func (a *Attempt) lastActivity() time.Time {
	last := a.StartedAt
	for _, qa := range a.Questions {
		if qa.AnsweredAt != nil && qa.AnsweredAt.After(last) {
			last = *qa.AnsweredAt
		}
	}
	return last
}

func (a *Attempt) correctCount() int {
	n := 0
	for _, qa := range a.Questions {
		if qa.Correct {
			n++
		}
	}
	return n
}
