package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

// ReviewService shows a finalized session with answer keys.
type ReviewService struct {
	catalog repository.CatalogReader
	store   repository.SessionStore
}

// NewReviewService creates a new ReviewService.
func NewReviewService(catalog repository.CatalogReader, store repository.SessionStore) *ReviewService {
	return &ReviewService{catalog: catalog, store: store}
}

// ReviewSession returns the whole review, or the single question number
// no (1-based) with navigation flags when no is given.
func (s *ReviewService) ReviewSession(ctx context.Context, sessionID int64, userID uuid.UUID, no *int) (*model.SessionReview, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if !sess.IsCompleted() {
		return nil, ErrSessionNotCompleted
	}

	exam, err := s.catalog.GetExam(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	total := len(sess.QuestionOrder)
	first, last := 0, total
	if no != nil {
		if *no < 1 || *no > total {
			return nil, ErrInvalidReviewNumber
		}
		first, last = *no-1, *no
	}

	answers, err := s.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	selected := make(map[int64]int64, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.ChoiceID
	}

	review := &model.SessionReview{
		SessionID:      sess.ID,
		ExamID:         sess.ExamID,
		ExamTitle:      exam.Title,
		Score:          sess.Score,
		TotalQuestions: total,
		CorrectAnswers: sess.CorrectAnswers,
		WrongAnswers:   sess.WrongAnswers,
		EmptyAnswers:   sess.EmptyAnswers,
		Review:         make([]model.ReviewItem, 0, last-first),
	}
	if no != nil {
		hasNext, hasPrev := *no < total, *no > 1
		review.CurrentNumber, review.HasNext, review.HasPrev = no, &hasNext, &hasPrev
	}

	for i := first; i < last; i++ {
		qid := sess.QuestionOrder[i]
		q, err := s.catalog.GetQuestion(ctx, qid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("question %d: %w", qid, ErrCorruptSession)
			}
			return nil, fmt.Errorf("get question: %w", err)
		}
		review.Review = append(review.Review, reviewItem(i+1, q, sess.ChoiceOrder[qid], selected))
	}
	return review, nil
}

func reviewItem(number int, q *model.Question, order []int64, selected map[int64]int64) model.ReviewItem {
	if len(order) == 0 {
		order = q.ChoiceIDs()
	}
	item := model.ReviewItem{
		Number:       number,
		QuestionID:   q.ID,
		QuestionText: q.QuestionText,
		ImageURL:     q.ImageURL,
		AudioURL:     q.AudioURL,
		Discussion:   q.Discussion,
		Choices:      make([]model.ReviewChoice, 0, len(order)),
	}
	for _, id := range order {
		ch, ok := q.ChoiceByID(id)
		if !ok {
			continue
		}
		item.Choices = append(item.Choices, model.ReviewChoice{
			ID:         ch.ID,
			ChoiceText: ch.ChoiceText,
			ImageURL:   ch.ImageURL,
			IsCorrect:  ch.IsCorrect,
		})
	}
	if choiceID, ok := selected[q.ID]; ok {
		item.SelectedChoiceID = &choiceID
		if ch, found := q.ChoiceByID(choiceID); found {
			item.IsCorrect = ch.IsCorrect
		}
	}
	return item
}
