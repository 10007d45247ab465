package model

// AnswerInput is the single typed form of an answer submission accepted by
// the session coordinator.
type AnswerInput struct {
	QuestionID int64 `json:"question_id" binding:"required,gt=0"`
	ChoiceID   int64 `json:"choice_id" binding:"required,gt=0"`
	Index      *int  `json:"index" binding:"omitempty,gte=0"`
}
