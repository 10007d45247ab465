package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestReviewRequiresCompletedOwnedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.start(t, pkgSarjana, examTKA)

	if _, err := f.reviews.ReviewSession(ctx, sess.ID, f.user, nil); !errors.Is(err, ErrSessionNotCompleted) {
		t.Fatalf("expected ErrSessionNotCompleted, got %v", err)
	}
	if _, err := f.coordin.SubmitSession(ctx, sess.ID, f.user); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reviews.ReviewSession(ctx, sess.ID, uuid.New(), nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestReviewSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.start(t, pkgSarjana, examTKA)
	order := sess.QuestionOrder

	f.answer(t, sess, order[0], correctChoice(order[0]))
	f.answer(t, sess, order[1], wrongChoice(order[1]))
	if _, err := f.coordin.SubmitSession(ctx, sess.ID, f.user); err != nil {
		t.Fatal(err)
	}

	full, err := f.reviews.ReviewSession(ctx, sess.ID, f.user, nil)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(full.Review) != 4 || full.HasNext != nil {
		t.Fatalf("expected 4 items without navigation, got %d", len(full.Review))
	}
	if *full.Score != 3 {
		t.Fatalf("expected score 3, got %v", *full.Score)
	}
	for i, item := range full.Review {
		if item.QuestionID != order[i] || item.Number != i+1 {
			t.Fatalf("item %d out of session order: %+v", i, item)
		}
		for j, ch := range item.Choices {
			if ch.ID != sess.ChoiceOrder[item.QuestionID][j] {
				t.Fatalf("choices of %d not in stored order", item.QuestionID)
			}
			if ch.IsCorrect != (ch.ID == correctChoice(item.QuestionID)) {
				t.Fatalf("wrong correctness flag on choice %d", ch.ID)
			}
		}
	}
	if !full.Review[0].IsCorrect || full.Review[1].IsCorrect || full.Review[2].SelectedChoiceID != nil {
		t.Fatalf("unexpected selections %+v", full.Review[:3])
	}

	one, err := f.reviews.ReviewSession(ctx, sess.ID, f.user, intPtr(4))
	if err != nil {
		t.Fatal(err)
	}
	if len(one.Review) != 1 || *one.HasNext || !*one.HasPrev || *one.CurrentNumber != 4 {
		t.Fatalf("unexpected single review %+v", one)
	}

	if _, err := f.reviews.ReviewSession(ctx, sess.ID, f.user, intPtr(0)); !errors.Is(err, ErrInvalidReviewNumber) || KindOf(err) != KindBadRequest {
		t.Fatalf("expected ErrInvalidReviewNumber, got %v", err)
	}
}
