package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

// AnswerLedger owns answer rows and the position derived from them.
// All methods run inside the caller's transaction.
type AnswerLedger struct{}

// Upsert records choiceID as the answer for (sessionID, questionID),
// updating the existing row in place. changed is false when the stored
// choice was already choiceID.
func (AnswerLedger) Upsert(ctx context.Context, tx repository.SessionTx, sessionID, questionID, choiceID int64) (bool, error) {
	existing, err := tx.FindAnswer(ctx, sessionID, questionID)
	switch {
	case err == nil:
		if existing.ChoiceID == choiceID {
			return false, nil
		}
		if err := tx.UpdateAnswerChoice(ctx, existing.ID, choiceID); err != nil {
			return false, fmt.Errorf("update answer: %w", err)
		}
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		a := &model.UserAnswer{SessionID: sessionID, QuestionID: questionID, ChoiceID: choiceID}
		if err := tx.InsertAnswer(ctx, a); err != nil {
			return false, fmt.Errorf("insert answer: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("find answer: %w", err)
	}
}

// RecomputePosition rescans every recorded answer of the session and
// returns the index of the first unanswered question in order, or
// len(order) when all are answered.
func (AnswerLedger) RecomputePosition(ctx context.Context, tx repository.SessionTx, sessionID int64, order []int64) (int, error) {
	ids, err := tx.AnsweredQuestionIDs(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list answered questions: %w", err)
	}
	answered := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		answered[id] = struct{}{}
	}
	return firstUnanswered(order, answered), nil
}

func firstUnanswered(order []int64, answered map[int64]struct{}) int {
	for i, qid := range order {
		if _, ok := answered[qid]; !ok {
			return i
		}
	}
	return len(order)
}
