package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

// Policy is the point value of each answer outcome.
type Policy struct {
	Correct float64
	Wrong   float64
	Empty   float64
}

var (
	DefaultPolicy = Policy{Correct: 4, Wrong: -1, Empty: 0}
	// NoPenaltyPolicy applies to the graduate English test.
	NoPenaltyPolicy = Policy{Correct: 4, Wrong: 0, Empty: 0}
)

// PolicyFor selects the scoring policy for a package/subtest combination.
func PolicyFor(pkg model.PackageType, exam model.ExamType) Policy {
	if pkg == model.PackageTypePascasarjana && exam == model.ExamTypeTBI {
		return NoPenaltyPolicy
	}
	return DefaultPolicy
}

// Score computes a result from raw counts.
func Score(total, answered, correct int, p Policy) model.SessionResult {
	wrong := answered - correct
	empty := total - answered
	if empty < 0 {
		empty = 0
	}
	percent := 0.0
	if total > 0 {
		percent = float64(correct) / float64(total) * 100
	}
	return model.SessionResult{
		Total:        total,
		Correct:      correct,
		Wrong:        wrong,
		Empty:        empty,
		RawScore:     float64(correct)*p.Correct + float64(wrong)*p.Wrong + float64(empty)*p.Empty,
		PercentScore: percent,
	}
}

// Scorer finalizes sessions. Finalization is a one-way latch: a session
// with completed_at set is never scored again.
type Scorer struct {
	catalog repository.CatalogReader
	store   repository.SessionStore
	now     func() time.Time
	log     zerolog.Logger
}

// NewScorer creates a new Scorer.
func NewScorer(catalog repository.CatalogReader, store repository.SessionStore, log zerolog.Logger) *Scorer {
	return &Scorer{
		catalog: catalog,
		store:   store,
		now:     time.Now,
		log:     log.With().Str("component", "scorer").Logger(),
	}
}

// Finalize scores the session in its own transaction; explicit submission
// goes through here. It returns a nil result when the session was already
// completed. Expiry paths call finalizeLocked inside their own transaction.
func (s *Scorer) Finalize(ctx context.Context, sessionID int64) (*model.SessionResult, error) {
	var result *model.SessionResult
	err := s.store.InTx(ctx, func(tx repository.SessionTx) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}
		result, err = s.finalizeLocked(ctx, tx, sess, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finalizeLocked scores sess inside tx; sess must have been read with
// LockSession in the same transaction. sess is updated in place.
func (s *Scorer) finalizeLocked(ctx context.Context, tx repository.SessionTx, sess *model.ExamSession, now time.Time) (*model.SessionResult, error) {
	if sess.IsCompleted() {
		return nil, nil
	}

	policy, err := s.policyFor(ctx, sess)
	if err != nil {
		return nil, err
	}

	answered, correct, err := tx.TallyAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("tally answers: %w", err)
	}
	res := Score(len(sess.QuestionOrder), answered, correct, policy)

	if err := tx.SaveResult(ctx, sess.ID, res, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil
		}
		return nil, fmt.Errorf("save result: %w", err)
	}

	completed := now
	sess.CompletedAt = &completed
	sess.CorrectAnswers, sess.WrongAnswers, sess.EmptyAnswers = &res.Correct, &res.Wrong, &res.Empty
	sess.Score = &res.RawScore

	s.log.Info().
		Int64("session_id", sess.ID).
		Int("correct", res.Correct).
		Int("wrong", res.Wrong).
		Int("empty", res.Empty).
		Float64("score", res.RawScore).
		Msg("Session finalized")
	return &res, nil
}

func (s *Scorer) policyFor(ctx context.Context, sess *model.ExamSession) (Policy, error) {
	exam, err := s.catalog.GetExam(ctx, sess.ExamID)
	if err != nil {
		return Policy{}, fmt.Errorf("get exam: %w", err)
	}
	pkg, err := s.catalog.GetPackage(ctx, sess.PackageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return DefaultPolicy, nil
		}
		return Policy{}, fmt.Errorf("get package: %w", err)
	}
	return PolicyFor(pkg.Type, exam.Type), nil
}
