package service

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-tryout/internal/model"
)

func at(t time.Time) *time.Time { return &t }

func TestTickWithoutGap(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0)}

	tr.Tick(s, t0.Add(10*time.Second))

	got := tr.Evaluate(s, 60)
	if got.SecondsLeft != 3590 {
		t.Fatalf("expected 3590 seconds left, got %d", got.SecondsLeft)
	}
	if !s.StartedAt.Equal(t0) {
		t.Fatalf("started_at moved: %v", s.StartedAt)
	}
}

func TestTickOfflineGapIsNotCharged(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0)}

	tr.Tick(s, t0.Add(10*time.Second))
	tr.Tick(s, t0.Add(130*time.Second))

	if want := t0.Add(120 * time.Second); !s.StartedAt.Equal(want) {
		t.Fatalf("expected started_at %v, got %v", want, s.StartedAt)
	}
	if got := tr.Evaluate(s, 60).SecondsLeft; got != 3590 {
		t.Fatalf("expected 3590 seconds left, got %d", got)
	}
}

func TestTickShortGapIsCharged(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0), TickedAt: at(t0)}

	tr.Tick(s, t0.Add(30*time.Second))

	if got := tr.Evaluate(s, 60).SecondsLeft; got != 3570 {
		t.Fatalf("expected 3570 seconds left, got %d", got)
	}
}

func TestTickClockSkewNeverMovesBackward(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0), TickedAt: at(t0.Add(20 * time.Second))}

	tr.Tick(s, t0.Add(5*time.Second))

	if !s.StartedAt.Equal(t0) {
		t.Fatalf("started_at changed on skew: %v", s.StartedAt)
	}
	if !s.TickedAt.Equal(t0.Add(20 * time.Second)) {
		t.Fatalf("ticked_at moved backward: %v", s.TickedAt)
	}
}

func TestTickIsIdempotent(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0), TickedAt: at(t0)}
	now := t0.Add(2 * time.Minute)

	tr.Tick(s, now)
	first := *s.StartedAt
	tr.Tick(s, now)

	if !s.StartedAt.Equal(first) {
		t.Fatalf("second tick shifted started_at again: %v vs %v", s.StartedAt, first)
	}
}

func TestTickSetsStartedAtLazily(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{}

	tr.Tick(s, now)

	if s.StartedAt == nil || !s.StartedAt.Equal(now) || !s.TickedAt.Equal(now) {
		t.Fatalf("expected started_at and ticked_at at %v, got %v / %v", now, s.StartedAt, s.TickedAt)
	}
}

func TestEvaluateDisabledAndExpired(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := &model.ExamSession{StartedAt: at(t0), TickedAt: at(t0.Add(61 * time.Minute))}

	if timing := tr.Evaluate(s, 0); timing.Timed || timing.Expired() {
		t.Fatalf("zero duration must disable timing, got %+v", timing)
	}
	timing := tr.Evaluate(s, 60)
	if !timing.Expired() || timing.SecondsLeft != 0 {
		t.Fatalf("expected expired with 0 left, got %+v", timing)
	}
	if !timing.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", timing.ExpiresAt)
	}
}

func TestEvaluateChargesWholeSecondsOnly(t *testing.T) {
	tr := NewTimeTracker(30 * time.Second)
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		left    int
		expired bool
	}{
		{time.Hour - 1500*time.Millisecond, 2, false},
		{time.Hour - 500*time.Millisecond, 1, false},
		{time.Hour, 0, true},
		{time.Hour + 400*time.Millisecond, 0, true},
	}
	for _, tc := range cases {
		s := &model.ExamSession{StartedAt: at(t0), TickedAt: at(t0.Add(tc.elapsed))}
		timing := tr.Evaluate(s, 60)
		if timing.SecondsLeft != tc.left || timing.Expired() != tc.expired {
			t.Errorf("elapsed %v: got left=%d expired=%v, want left=%d expired=%v",
				tc.elapsed, timing.SecondsLeft, timing.Expired(), tc.left, tc.expired)
		}
	}
}
