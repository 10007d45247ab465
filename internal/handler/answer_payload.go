package handler

import (
	"github.com/stemsi/exstem-tryout/internal/model"
)

// answerPayload accepts every field name clients use for an answer.
// The first present alias wins.
type answerPayload struct {
	QuestionID      *int64 `json:"question_id"`
	QuestionIDCamel *int64 `json:"questionId"`

	ChoiceID      *int64 `json:"choice_id"`
	ChoiceIDCamel *int64 `json:"choiceId"`
	Answer        *int64 `json:"answer"`

	Index              *int `json:"index"`
	QuestionIndex      *int `json:"questionIndex"`
	QuestionIndexSnake *int `json:"question_index"`
}

func (p *answerPayload) toInput() model.AnswerInput {
	var in model.AnswerInput
	if v := firstInt64(p.QuestionID, p.QuestionIDCamel); v != nil {
		in.QuestionID = *v
	}
	if v := firstInt64(p.ChoiceID, p.ChoiceIDCamel, p.Answer); v != nil {
		in.ChoiceID = *v
	}
	for _, idx := range []*int{p.Index, p.QuestionIndex, p.QuestionIndexSnake} {
		if idx != nil {
			in.Index = idx
			break
		}
	}
	return in
}

func firstInt64(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
