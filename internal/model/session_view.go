package model

import (
	"time"

	"github.com/google/uuid"
)

// ChoiceForUser is a choice as shown during an attempt (no correctness flag).
type ChoiceForUser struct {
	ID         int64   `json:"id"`
	ChoiceText string  `json:"choice_text"`
	ImageURL   *string `json:"image_url,omitempty"`
}

// QuestionView is the payload returned when fetching a question of a session.
type QuestionView struct {
	SessionID        int64           `json:"session_id"`
	ExamID           int64           `json:"exam_id"`
	QuestionID       int64           `json:"question_id"`
	QuestionText     string          `json:"question_text"`
	ImageURL         *string         `json:"image_url,omitempty"`
	AudioURL         *string         `json:"audio_url,omitempty"`
	OrderedChoices   []ChoiceForUser `json:"ordered_choices"`
	Index            int             `json:"index"`
	Position         int             `json:"position"`
	TotalQuestions   int             `json:"total_questions"`
	SelectedChoiceID *int64          `json:"selected_choice_id"`
	SecondsLeft      *int            `json:"seconds_left"`
	ExpiresAt        *time.Time      `json:"expires_at"`
}

// AnswerOutcome is returned after an answer is recorded.
type AnswerOutcome struct {
	Finished     bool       `json:"finished"`
	NextPosition int        `json:"next_position"`
	SecondsLeft  *int       `json:"seconds_left"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// ResumeView reports where a user left off.
type ResumeView struct {
	SessionID       int64  `json:"session_id"`
	ExamID          int64  `json:"exam_id"`
	CurrentPosition int    `json:"current_position"`
	TotalQuestions  int    `json:"total_questions"`
	Completed       bool   `json:"completed"`
	NextQuestionID  *int64 `json:"next_question_id"`
}

// PingResult is the heartbeat reply. SecondsLeft is nil when timing is disabled.
type PingResult struct {
	SecondsLeft *int       `json:"seconds_left"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Finished    bool       `json:"finished"`
}

// SubmitResult is returned by explicit finalization. Result is nil when the
// session had already been completed.
type SubmitResult struct {
	Finished bool           `json:"finished"`
	Result   *SessionResult `json:"result"`
}

// StartedSession summarizes a session returned by StartPackage.
type StartedSession struct {
	SessionID      int64      `json:"session_id"`
	ExamID         int64      `json:"exam_id"`
	UserID         uuid.UUID  `json:"user_id"`
	TotalQuestions int        `json:"total_questions"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// SessionSummary is one row of a package progress report. Counts are zero
// until the session is finalized; consult CompletedAt to tell them apart.
type SessionSummary struct {
	SessionID       int64      `json:"session_id"`
	ExamID          int64      `json:"exam_id"`
	CurrentPosition int        `json:"current_position"`
	CorrectAnswers  int        `json:"correct_answers"`
	WrongAnswers    int        `json:"wrong_answers"`
	EmptyAnswers    int        `json:"empty_answers"`
	Score           float64    `json:"score"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// ProgressTotals aggregates a package's sessions.
type ProgressTotals struct {
	Correct      int     `json:"correct"`
	Wrong        int     `json:"wrong"`
	Empty        int     `json:"empty"`
	AverageScore float64 `json:"average_score"`
}

// PackageProgress is the per-user progress across a package.
type PackageProgress struct {
	PackageID int64            `json:"package_id"`
	Sessions  []SessionSummary `json:"sessions"`
	Totals    ProgressTotals   `json:"totals"`
}

// ReviewChoice is a choice as shown after completion, correctness included.
type ReviewChoice struct {
	ID         int64   `json:"id"`
	ChoiceText string  `json:"choice_text"`
	ImageURL   *string `json:"image_url,omitempty"`
	IsCorrect  bool    `json:"is_correct"`
}

// ReviewItem is one reviewed question.
type ReviewItem struct {
	Number           int            `json:"number"`
	QuestionID       int64          `json:"question_id"`
	QuestionText     string         `json:"question_text"`
	ImageURL         *string        `json:"image_url,omitempty"`
	AudioURL         *string        `json:"audio_url,omitempty"`
	Discussion       *string        `json:"discussion,omitempty"`
	Choices          []ReviewChoice `json:"choices"`
	SelectedChoiceID *int64         `json:"selected_choice_id"`
	IsCorrect        bool           `json:"is_correct"`
}

// SessionReview is the post-completion review of a session.
type SessionReview struct {
	SessionID      int64        `json:"session_id"`
	ExamID         int64        `json:"exam_id"`
	ExamTitle      string       `json:"exam_title"`
	Score          *float64     `json:"score"`
	TotalQuestions int          `json:"total_questions"`
	CorrectAnswers *int         `json:"correct_answers"`
	WrongAnswers   *int         `json:"wrong_answers"`
	EmptyAnswers   *int         `json:"empty_answers"`
	CurrentNumber  *int         `json:"current_question"`
	HasNext        *bool        `json:"has_next"`
	HasPrev        *bool        `json:"has_prev"`
	Review         []ReviewItem `json:"review"`
}
