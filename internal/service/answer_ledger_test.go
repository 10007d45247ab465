package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
	"github.com/stemsi/exstem-tryout/internal/repository/memory"
)

func TestFirstUnanswered(t *testing.T) {
	order := []int64{5, 3, 9, 1}
	cases := []struct {
		answered []int64
		want     int
	}{
		{nil, 0},
		{[]int64{3}, 0},
		{[]int64{5, 9}, 1},
		{[]int64{5, 3, 1}, 2},
		{[]int64{5, 3, 9, 1}, 4},
	}
	for _, tc := range cases {
		set := make(map[int64]struct{})
		for _, id := range tc.answered {
			set[id] = struct{}{}
		}
		if got := firstUnanswered(order, set); got != tc.want {
			t.Errorf("answered %v: got %d, want %d", tc.answered, got, tc.want)
		}
	}
}

func TestLedgerUpsertUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(memory.NewCatalog())
	sess := &model.ExamSession{UserID: uuid.New(), ExamID: 1, QuestionOrder: []int64{7, 8}}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatal(err)
	}
	var ledger AnswerLedger

	upsert := func(choice int64) bool {
		var changed bool
		err := store.InTx(ctx, func(tx repository.SessionTx) error {
			var err error
			changed, err = ledger.Upsert(ctx, tx, sess.ID, 7, choice)
			return err
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		return changed
	}

	if !upsert(71) {
		t.Fatal("first upsert should insert")
	}
	if upsert(71) {
		t.Fatal("same choice should be a no-op")
	}
	if !upsert(72) {
		t.Fatal("new choice should update")
	}

	if n := store.AnswerCount(sess.ID); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
	a, err := store.FindAnswer(ctx, sess.ID, 7)
	if err != nil || a.ChoiceID != 72 {
		t.Fatalf("expected choice 72, got %+v err=%v", a, err)
	}
}
