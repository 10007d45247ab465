package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert hits a uniqueness constraint
	// or a conditional update matched nothing.
	ErrConflict = errors.New("record conflict")
)

// CatalogReader exposes the read-only catalog (packages, subtests, questions, choices).
type CatalogReader interface {
	GetPackage(ctx context.Context, id int64) (*model.Package, error)
	// ListPackageExams returns the package's subtests ordered by id.
	ListPackageExams(ctx context.Context, packageID int64) ([]model.Exam, error)
	GetExam(ctx context.Context, id int64) (*model.Exam, error)
	// GetQuestion returns the question with its choices in catalog order.
	GetQuestion(ctx context.Context, id int64) (*model.Question, error)
	// ListExamQuestions returns all questions of a subtest with their choices.
	ListExamQuestions(ctx context.Context, examID int64) ([]model.Question, error)
}

// EntitlementReader answers whether a user may start a package.
type EntitlementReader interface {
	HasPackage(ctx context.Context, userID uuid.UUID, packageID int64) (bool, error)
}

// SessionStore is the authoritative store for sessions and answers.
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.ExamSession, error)
	GetByUserAndExam(ctx context.Context, userID uuid.UUID, examID int64) (*model.ExamSession, error)
	// Create inserts s and fills its ID and CreatedAt. Returns ErrConflict if a
	// session for (UserID, ExamID) already exists.
	Create(ctx context.Context, s *model.ExamSession) error
	ListByUserAndExams(ctx context.Context, userID uuid.UUID, examIDs []int64) ([]model.ExamSession, error)
	FindAnswer(ctx context.Context, sessionID, questionID int64) (*model.UserAnswer, error)
	ListAnswers(ctx context.Context, sessionID int64) ([]model.UserAnswer, error)
	// InTx runs fn inside one transaction; fn's error rolls it back.
	InTx(ctx context.Context, fn func(tx SessionTx) error) error
}

// SessionTx is the set of per-session mutations that must be atomic.
type SessionTx interface {
	// LockSession reads the session and holds a row lock until the transaction ends.
	LockSession(ctx context.Context, id int64) (*model.ExamSession, error)
	UpdateTiming(ctx context.Context, id int64, startedAt, tickedAt *time.Time) error
	FindAnswer(ctx context.Context, sessionID, questionID int64) (*model.UserAnswer, error)
	InsertAnswer(ctx context.Context, a *model.UserAnswer) error
	UpdateAnswerChoice(ctx context.Context, answerID, choiceID int64) error
	AnsweredQuestionIDs(ctx context.Context, sessionID int64) ([]int64, error)
	UpdatePosition(ctx context.Context, id int64, position int) error
	// TallyAnswers counts recorded answers and how many picked a correct choice.
	TallyAnswers(ctx context.Context, sessionID int64) (answered, correct int, err error)
	// SaveResult stores the result and sets completed_at. It only applies to
	// sessions that are not yet completed; otherwise it returns ErrConflict.
	SaveResult(ctx context.Context, id int64, result model.SessionResult, completedAt time.Time) error
}
