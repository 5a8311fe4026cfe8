package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScoringType selects how points are awarded for a correct answer.
type ScoringType string

const (
	ScoringSimple    ScoringType = "simple"
	ScoringTimeBased ScoringType = "time_based"
	ScoringStreak    ScoringType = "streak_based"
)

// Valid reports whether t is a known scoring type. The zero value counts as simple.
func (t ScoringType) Valid() bool {
	switch t {
	case "", ScoringSimple, ScoringTimeBased, ScoringStreak:
		return true
	}
	return false
}

// Option is one possible answer to a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question belongs to exactly one quiz. Points may be zero.
type Question struct {
	ID      string   `json:"id"`
	QuizID  string   `json:"quizId"`
	Text    string   `json:"text"`
	Points  int      `json:"points"`
	Options []Option `json:"options"`
}

// Quiz is immutable once published.
type Quiz struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	TimeLimit   time.Duration `json:"timeLimit"`
	ScoringType ScoringType   `json:"scoringType,omitempty"`
	Questions   []Question    `json:"questions"`
}

// NewQuiz validates the header fields and assigns a fresh id.
func NewQuiz(title, description string, timeLimit time.Duration) (Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Quiz{}, Invalid("title cannot be empty")
	}
	if timeLimit <= 0 {
		return Quiz{}, Invalid("time limit must be positive")
	}
	return Quiz{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		TimeLimit:   timeLimit,
		ScoringType: ScoringSimple,
	}, nil
}

// AddQuestion appends a question built for this quiz.
func (q *Quiz) AddQuestion(question Question) error {
	if question.QuizID != q.ID {
		return Invalid("question %s belongs to a different quiz", question.ID)
	}
	if _, ok := q.Question(question.ID); ok {
		return Invalid("question %s already exists in quiz", question.ID)
	}
	q.Questions = append(q.Questions, question)
	return nil
}

// Question looks up a question by id.
func (q Quiz) Question(questionID string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return question, true
		}
	}
	return Question{}, false
}

// TotalPoints is the maximum simple score for the quiz.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Validate checks the invariants of a quiz that did not come through NewQuiz,
// e.g. one decoded from storage or a request.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return Invalid("title cannot be empty")
	}
	if q.TimeLimit <= 0 {
		return Invalid("time limit must be positive")
	}
	if !q.ScoringType.Valid() {
		return Invalid("unknown scoring type %q", q.ScoringType)
	}
	for _, question := range q.Questions {
		if _, err := NewQuestion(q.ID, question.Text, question.Points, question.Options...); err != nil {
			return err
		}
	}
	return nil
}

// NewQuestion validates the question and its options and assigns a fresh id.
func NewQuestion(quizID, text string, points int, options ...Option) (Question, error) {
	text = strings.TrimSpace(text)
	switch {
	case quizID == "":
		return Question{}, Invalid("quiz id cannot be empty")
	case text == "":
		return Question{}, Invalid("question text cannot be empty")
	case points < 0:
		return Question{}, Invalid("points cannot be negative")
	}

	question := Question{
		ID:     uuid.NewString(),
		QuizID: quizID,
		Text:   text,
		Points: points,
	}
	for _, opt := range options {
		if err := question.AddOption(opt.Text, opt.Correct); err != nil {
			return Question{}, err
		}
	}
	if question.correctCount() == 0 {
		return Question{}, Invalid("question needs at least one correct option")
	}
	return question, nil
}

// AddOption appends an option; text must be unique within the question ignoring case.
func (q *Question) AddOption(text string, correct bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return Invalid("option cannot be empty")
	}
	if q.optionIndex(text) >= 0 {
		return Invalid("option %q already exists", text)
	}
	q.Options = append(q.Options, Option{Text: text, Correct: correct})
	return nil
}

// RemoveOption drops the option matching text. Unknown text is a no-op.
func (q *Question) RemoveOption(text string) error {
	idx := q.optionIndex(strings.TrimSpace(text))
	if idx < 0 {
		return nil
	}
	if q.Options[idx].Correct && q.correctCount() == 1 {
		return Invalid("cannot remove the only correct option")
	}
	q.Options = append(q.Options[:idx:idx], q.Options[idx+1:]...)
	return nil
}

func (q Question) optionIndex(text string) int {
	for i, opt := range q.Options {
		if strings.EqualFold(opt.Text, text) {
			return i
		}
	}
	return -1
}

func (q Question) correctCount() int {
	n := 0
	for _, opt := range q.Options {
		if opt.Correct {
			n++
		}
	}
	return n
}

// Connection is a live push-channel connection bound to one quiz room.
type Connection struct {
	ID          string    `json:"connectionId"`
	UserID      string    `json:"userId"`
	QuizID      string    `json:"quizId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ScoringEvent is emitted after a graded answer and never persisted.
type ScoringEvent struct {
	UserID            string `json:"userId"`
	QuizID            string `json:"quizId"`
	QuestionID        string `json:"questionId"`
	IsCorrect         bool   `json:"isCorrect"`
	PointsEarned      int    `json:"pointsEarned"`
	TotalPointsEarned int    `json:"totalPointsEarned"`
}
