package service

import (
	"time"

	"github.com/stemsi/exstem-tryout/internal/model"
)

// Timing is the evaluated clock of a session after a tick.
type Timing struct {
	// Timed is false when the subtest has no positive duration.
	Timed       bool
	SecondsLeft int
	ExpiresAt   time.Time
}

// Expired reports whether a timed session has run out.
func (t Timing) Expired() bool {
	return t.Timed && t.SecondsLeft <= 0
}

// SecondsLeftPtr returns nil for untimed sessions.
func (t Timing) SecondsLeftPtr() *int {
	if !t.Timed {
		return nil
	}
	v := t.SecondsLeft
	return &v
}

// ExpiresAtPtr returns nil for untimed sessions.
func (t Timing) ExpiresAtPtr() *time.Time {
	if !t.Timed {
		return nil
	}
	v := t.ExpiresAt
	return &v
}

// TimeTracker turns heartbeats into remaining time. A heartbeat gap longer
// than the offline threshold is treated as disconnection and pushes
// started_at forward by the whole gap.
type TimeTracker struct {
	offlineThreshold time.Duration
}

// NewTimeTracker creates a tracker with the given offline threshold.
func NewTimeTracker(offlineThreshold time.Duration) *TimeTracker {
	return &TimeTracker{offlineThreshold: offlineThreshold}
}

// Tick records a heartbeat at now. started_at is set on the first tick and
// never moves backward; ticked_at never moves backward either, so a skewed
// clock counts as a zero gap. Repeating a tick with the same now is a no-op.
func (t *TimeTracker) Tick(s *model.ExamSession, now time.Time) {
	if s.StartedAt == nil {
		started := now
		s.StartedAt = &started
	}
	if s.TickedAt != nil {
		gap := now.Sub(*s.TickedAt)
		if gap <= 0 {
			return
		}
		if gap > t.offlineThreshold {
			shifted := s.StartedAt.Add(gap)
			s.StartedAt = &shifted
		}
	}
	ticked := now
	s.TickedAt = &ticked
}

// Evaluate computes remaining time from the last tick.
func (t *TimeTracker) Evaluate(s *model.ExamSession, durationMinutes int) Timing {
	if durationMinutes <= 0 || s.StartedAt == nil {
		return Timing{}
	}
	budget := time.Duration(durationMinutes) * time.Minute
	elapsed := time.Duration(0)
	if s.TickedAt != nil && s.TickedAt.After(*s.StartedAt) {
		elapsed = s.TickedAt.Sub(*s.StartedAt)
	}
	// Elapsed time counts in whole seconds; the final partial second is not charged.
	left := int(budget/time.Second) - int(elapsed/time.Second)
	if left < 0 {
		left = 0
	}
	return Timing{
		Timed:       true,
		SecondsLeft: left,
		ExpiresAt:   s.StartedAt.Add(budget),
	}
}
