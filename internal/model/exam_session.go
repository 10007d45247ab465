package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession is one timed attempt by one user at one subtest.
// QuestionOrder and ChoiceOrder are fixed at creation. CompletedAt is a
// one-way latch; the result fields stay nil until it is set.
type ExamSession struct {
	ID              int64             `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	ExamID          int64             `json:"exam_id"`
	PackageID       int64             `json:"package_id"`
	QuestionOrder   []int64           `json:"question_order"`
	ChoiceOrder     map[int64][]int64 `json:"-"`
	CurrentPosition int               `json:"current_position"`
	StartedAt       *time.Time        `json:"started_at"`
	TickedAt        *time.Time        `json:"ticked_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
	CorrectAnswers  *int              `json:"correct_answers"`
	WrongAnswers    *int              `json:"wrong_answers"`
	EmptyAnswers    *int              `json:"empty_answers"`
	Score           *float64          `json:"score"`
	CreatedAt       time.Time         `json:"created_at"`
}

// IsCompleted reports whether the completion latch is set.
func (s *ExamSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// IndexOf returns the position of questionID in the question order, or -1.
func (s *ExamSession) IndexOf(questionID int64) int {
	for i, q := range s.QuestionOrder {
		if q == questionID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so in-memory stores never share slices with callers.
func (s *ExamSession) Clone() *ExamSession {
	c := *s
	c.QuestionOrder = append([]int64(nil), s.QuestionOrder...)
	if s.ChoiceOrder != nil {
		c.ChoiceOrder = make(map[int64][]int64, len(s.ChoiceOrder))
		for k, v := range s.ChoiceOrder {
			c.ChoiceOrder[k] = append([]int64(nil), v...)
		}
	}
	c.StartedAt = cloneTime(s.StartedAt)
	c.TickedAt = cloneTime(s.TickedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// UserAnswer is a user's current choice for one question of one session.
// At most one row exists per (SessionID, QuestionID).
type UserAnswer struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	ChoiceID   int64     `json:"choice_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SessionResult is the outcome persisted by finalization.
type SessionResult struct {
	Total        int     `json:"total_questions"`
	Correct      int     `json:"correct"`
	Wrong        int     `json:"wrong"`
	Empty        int     `json:"empty"`
	RawScore     float64 `json:"raw_score"`
	PercentScore float64 `json:"percent_score"`
}
