package postgres

import (
	"context"
	"errors"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore persists attempts and their question attempts. Answers and
// status changes are conditional updates, so concurrent writers cannot
// overwrite each other.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const attemptColumns = `id, user_id, quiz_id, status, started_at, expires_at, completed_at`

// CreateAttempt saves the attempt and its question attempts in one transaction.
func (s *AttemptStore) CreateAttempt(ctx context.Context, a *domain.Attempt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Infra("begin create attempt", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO attempts (`+attemptColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.QuizID, string(a.Status), a.StartedAt, a.ExpiresAt, a.CompletedAt)
	if isUniqueViolation(err) {
		return domain.ErrActiveAttemptExists
	}
	if err != nil {
		return domain.Infra("insert attempt", err)
	}

	batch := &pgx.Batch{}
	for i, qa := range a.Questions {
		batch.Queue(`INSERT INTO question_attempts
			(id, attempt_id, question_id, position, answered, submitted_answer, answered_at, correct, points_earned)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			qa.ID, a.ID, qa.QuestionID, i, qa.Answered, qa.SubmittedAnswer, qa.AnsweredAt, qa.Correct, qa.PointsEarned)
	}
	results := tx.SendBatch(ctx, batch)
	for range a.Questions {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return domain.Infra("insert question attempt", err)
		}
	}
	if err := results.Close(); err != nil {
		return domain.Infra("insert question attempts", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Infra("commit create attempt", err)
	}
	return nil
}

func (s *AttemptStore) LatestAttempt(ctx context.Context, userID, quizID string) (*domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE user_id=$1 AND quiz_id=$2 ORDER BY started_at DESC LIMIT 1`, userID, quizID)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, domain.Infra("load attempt", err)
	}
	if err := loadQuestions(ctx, s.pool, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RecordAnswer updates the question attempt only while it is unanswered and
// returns the attempt total from the same transaction.
func (s *AttemptStore) RecordAnswer(ctx context.Context, attemptID string, qa domain.QuestionAttempt) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, domain.Infra("begin record answer", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE question_attempts
		SET answered=true, submitted_answer=$3, answered_at=$4, correct=$5, points_earned=$6
		WHERE attempt_id=$1 AND question_id=$2 AND answered=false`,
		attemptID, qa.QuestionID, qa.SubmittedAnswer, qa.AnsweredAt, qa.Correct, qa.PointsEarned)
	if err != nil {
		return 0, domain.Infra("record answer", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, answerConflict(ctx, tx, attemptID, qa.QuestionID)
	}

	var total int
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(points_earned) FILTER (WHERE correct), 0)
		FROM question_attempts WHERE attempt_id=$1`, attemptID).Scan(&total)
	if err != nil {
		return 0, domain.Infra("sum points", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, domain.Infra("commit record answer", err)
	}
	return total, nil
}

// answerConflict explains why the conditional update matched no row.
func answerConflict(ctx context.Context, q querier, attemptID, questionID string) error {
	var answered bool
	err := q.QueryRow(ctx, `SELECT answered FROM question_attempts WHERE attempt_id=$1 AND question_id=$2`,
		attemptID, questionID).Scan(&answered)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id=$1)`, attemptID).Scan(&exists); err != nil {
			return domain.Infra("check attempt", err)
		}
		if !exists {
			return domain.ErrAttemptNotFound
		}
		return domain.ErrQuestionNotFound
	case err != nil:
		return domain.Infra("check answer", err)
	default:
		return domain.ErrAlreadyAnswered
	}
}

// UpdateStatus persists a terminal transition; only an in-progress attempt may move.
func (s *AttemptStore) UpdateStatus(ctx context.Context, a *domain.Attempt) error {
	tag, err := s.pool.Exec(ctx, `UPDATE attempts SET status=$2, completed_at=$3
		WHERE id=$1 AND status=$4`, a.ID, string(a.Status), a.CompletedAt, string(domain.StatusInProgress))
	if err != nil {
		return domain.Infra("update attempt status", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id=$1)`, a.ID).Scan(&exists); err != nil {
		return domain.Infra("check attempt", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAttemptNotInProgress
}

// ListOverdue returns in-progress attempts whose deadline passed, oldest first.
// A limit of zero means no limit.
func (s *AttemptStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE status=$1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT NULLIF($3::int, 0)`, string(domain.StatusInProgress), now, limit)
	if err != nil {
		return nil, domain.Infra("list overdue attempts", err)
	}
	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			rows.Close()
			return nil, domain.Infra("scan attempt", err)
		}
		attempts = append(attempts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.Infra("list overdue attempts", err)
	}

	for _, a := range attempts {
		if err := loadQuestions(ctx, s.pool, a); err != nil {
			return nil, err
		}
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (*domain.Attempt, error) {
	var (
		a      domain.Attempt
		status string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &status, &a.StartedAt, &a.ExpiresAt, &a.CompletedAt); err != nil {
		return nil, err
	}
	a.Status = domain.AttemptStatus(status)
	return &a, nil
}

func loadQuestions(ctx context.Context, q querier, a *domain.Attempt) error {
	rows, err := q.Query(ctx, `SELECT id, question_id, answered, submitted_answer, answered_at, correct, points_earned
		FROM question_attempts WHERE attempt_id=$1 ORDER BY position`, a.ID)
	if err != nil {
		return domain.Infra("load question attempts", err)
	}
	defer rows.Close()

	a.Questions = a.Questions[:0]
	for rows.Next() {
		qa := domain.QuestionAttempt{AttemptID: a.ID}
		if err := rows.Scan(&qa.ID, &qa.QuestionID, &qa.Answered, &qa.SubmittedAnswer, &qa.AnsweredAt, &qa.Correct, &qa.PointsEarned); err != nil {
			return domain.Infra("scan question attempt", err)
		}
		a.Questions = append(a.Questions, qa)
	}
	if err := rows.Err(); err != nil {
		return domain.Infra("load question attempts", err)
	}
	return nil
}
