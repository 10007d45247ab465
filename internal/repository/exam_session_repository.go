package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-tryout/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id, user_id, exam_id, package_id, question_order, choice_order, current_position,
	started_at, ticked_at, completed_at, correct_answers, wrong_answers, empty_answers, score, created_at`

// ExamSessionRepository handles exam session and answer data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// GetByID retrieves a session by id.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id int64) (*model.ExamSession, error) {
	return getSession(ctx, r.pool, `SELECT `+sessionColumns+` FROM user_exam_sessions WHERE id = $1`, id)
}

// GetByUserAndExam retrieves the session for a specific user-exam combination.
func (r *ExamSessionRepository) GetByUserAndExam(ctx context.Context, userID uuid.UUID, examID int64) (*model.ExamSession, error) {
	return getSession(ctx, r.pool,
		`SELECT `+sessionColumns+` FROM user_exam_sessions WHERE user_id = $1 AND exam_id = $2`,
		userID, examID)
}

// Create inserts a new session. A concurrent insert for the same (user, exam)
// loses on the unique constraint and gets ErrConflict.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	choiceOrder := s.ChoiceOrder
	if choiceOrder == nil {
		choiceOrder = map[int64][]int64{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_exam_sessions (user_id, exam_id, package_id, question_order, choice_order, current_position)
		 VALUES ($1, $2, $3, $4, $5, 0)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING id, created_at`,
		s.UserID, s.ExamID, s.PackageID, s.QuestionOrder, choiceOrder,
	).Scan(&s.ID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	return err
}

// ListByUserAndExams retrieves a user's sessions for the given exams, ordered by exam id.
func (r *ExamSessionRepository) ListByUserAndExams(ctx context.Context, userID uuid.UUID, examIDs []int64) ([]model.ExamSession, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM user_exam_sessions
		 WHERE user_id = $1 AND exam_id = ANY($2)
		 ORDER BY exam_id ASC`, userID, examIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// FindAnswer retrieves the answer for one question of a session.
func (r *ExamSessionRepository) FindAnswer(ctx context.Context, sessionID, questionID int64) (*model.UserAnswer, error) {
	return findAnswer(ctx, r.pool, sessionID, questionID)
}

// ListAnswers retrieves all answers of a session.
func (r *ExamSessionRepository) ListAnswers(ctx context.Context, sessionID int64) ([]model.UserAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, question_id, choice_id, updated_at
		 FROM user_answers WHERE session_id = $1 ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.UserAnswer
	for rows.Next() {
		var a model.UserAnswer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.ChoiceID, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// InTx runs fn in a read-committed transaction, committing if fn returns nil.
func (r *ExamSessionRepository) InTx(ctx context.Context, fn func(tx SessionTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&examSessionTx{q: tx})
	})
}

// ────────────────────────────────────────────────────────────────────────────
// Transactional operations
// ────────────────────────────────────────────────────────────────────────────

type examSessionTx struct {
	q querier
}

func (t *examSessionTx) LockSession(ctx context.Context, id int64) (*model.ExamSession, error) {
	return getSession(ctx, t.q, `SELECT `+sessionColumns+` FROM user_exam_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (t *examSessionTx) UpdateTiming(ctx context.Context, id int64, startedAt, tickedAt *time.Time) error {
	_, err := t.q.Exec(ctx,
		`UPDATE user_exam_sessions SET started_at = $1, ticked_at = $2 WHERE id = $3`,
		startedAt, tickedAt, id)
	return err
}

func (t *examSessionTx) FindAnswer(ctx context.Context, sessionID, questionID int64) (*model.UserAnswer, error) {
	return findAnswer(ctx, t.q, sessionID, questionID)
}

func (t *examSessionTx) InsertAnswer(ctx context.Context, a *model.UserAnswer) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO user_answers (session_id, question_id, choice_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, updated_at`,
		a.SessionID, a.QuestionID, a.ChoiceID,
	).Scan(&a.ID, &a.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (t *examSessionTx) UpdateAnswerChoice(ctx context.Context, answerID, choiceID int64) error {
	_, err := t.q.Exec(ctx,
		`UPDATE user_answers SET choice_id = $1, updated_at = NOW() WHERE id = $2`,
		choiceID, answerID)
	return err
}

func (t *examSessionTx) AnsweredQuestionIDs(ctx context.Context, sessionID int64) ([]int64, error) {
	rows, err := t.q.Query(ctx, `SELECT question_id FROM user_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *examSessionTx) UpdatePosition(ctx context.Context, id int64, position int) error {
	_, err := t.q.Exec(ctx, `UPDATE user_exam_sessions SET current_position = $1 WHERE id = $2`, position, id)
	return err
}

func (t *examSessionTx) TallyAnswers(ctx context.Context, sessionID int64) (int, int, error) {
	var answered, correct int
	err := t.q.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE qc.is_correct)
		 FROM user_answers ua
		 JOIN question_choices qc ON qc.id = ua.choice_id
		 WHERE ua.session_id = $1`, sessionID,
	).Scan(&answered, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("tally answers: %w", err)
	}
	return answered, correct, nil
}

func (t *examSessionTx) SaveResult(ctx context.Context, id int64, res model.SessionResult, completedAt time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE user_exam_sessions
		 SET correct_answers = $1, wrong_answers = $2, empty_answers = $3, score = $4, completed_at = $5
		 WHERE id = $6 AND completed_at IS NULL`,
		res.Correct, res.Wrong, res.Empty, res.RawScore, completedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func getSession(ctx context.Context, q querier, sql string, args ...any) (*model.ExamSession, error) {
	s, err := scanSession(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.ExamID, &s.PackageID, &s.QuestionOrder, &s.ChoiceOrder, &s.CurrentPosition,
		&s.StartedAt, &s.TickedAt, &s.CompletedAt,
		&s.CorrectAnswers, &s.WrongAnswers, &s.EmptyAnswers, &s.Score, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func findAnswer(ctx context.Context, q querier, sessionID, questionID int64) (*model.UserAnswer, error) {
	a := &model.UserAnswer{}
	err := q.QueryRow(ctx,
		`SELECT id, session_id, question_id, choice_id, updated_at
		 FROM user_answers WHERE session_id = $1 AND question_id = $2`,
		sessionID, questionID,
	).Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.ChoiceID, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}
