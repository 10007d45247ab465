package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

// MetaCache is the non-authoritative session metadata cache. Nothing reads
// it back on the request path.
type MetaCache interface {
	CacheHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error
}

// SessionCoordinator is the operation surface of the exam engine. Every
// session accessor enforces ownership, and every mutation of per-session
// state runs inside a store transaction holding the session row.
type SessionCoordinator struct {
	catalog      repository.CatalogReader
	entitlements repository.EntitlementReader
	store        repository.SessionStore
	tracker      *TimeTracker
	locks        *LockManager
	ledger       AnswerLedger
	scorer       *Scorer
	cache        MetaCache

	lockTTL time.Duration
	metaTTL time.Duration

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	log     zerolog.Logger
}

// NewSessionCoordinator wires the engine. cache may be nil.
func NewSessionCoordinator(
	catalog repository.CatalogReader,
	entitlements repository.EntitlementReader,
	store repository.SessionStore,
	locks *LockManager,
	scorer *Scorer,
	cache MetaCache,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionCoordinator {
	return &SessionCoordinator{
		catalog:      catalog,
		entitlements: entitlements,
		store:        store,
		tracker:      NewTimeTracker(cfg.OfflineThreshold),
		locks:        locks,
		scorer:       scorer,
		cache:        cache,
		lockTTL:      cfg.AnswerLockTTL,
		metaTTL:      cfg.SessionMetaTTL,
		now:          time.Now,
		shuffle:      rand.Shuffle,
		log:          log.With().Str("component", "session_coordinator").Logger(),
	}
}

// StartPackage returns the user's session for every subtest of the package,
// creating the missing ones with freshly shuffled question and choice orders.
// Existing sessions are returned untouched.
func (c *SessionCoordinator) StartPackage(ctx context.Context, userID uuid.UUID, packageID int64) ([]*model.ExamSession, error) {
	ok, err := c.entitlements.HasPackage(ctx, userID, packageID)
	if err != nil {
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	if !ok {
		return nil, ErrNotEntitled
	}

	exams, err := c.packageExams(ctx, packageID)
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.ExamSession, 0, len(exams))
	for i := range exams {
		sess, err := c.startExam(ctx, userID, packageID, &exams[i])
		if err != nil {
			return nil, fmt.Errorf("start exam %d: %w", exams[i].ID, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (c *SessionCoordinator) packageExams(ctx context.Context, packageID int64) ([]model.Exam, error) {
	if _, err := c.catalog.GetPackage(ctx, packageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	exams, err := c.catalog.ListPackageExams(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("list package exams: %w", err)
	}
	return exams, nil
}

func (c *SessionCoordinator) startExam(ctx context.Context, userID uuid.UUID, packageID int64, exam *model.Exam) (*model.ExamSession, error) {
	existing, err := c.store.GetByUserAndExam(ctx, userID, exam.ID)
	if err == nil {
		c.cacheMeta(ctx, existing)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	questions, err := c.catalog.ListExamQuestions(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	order := make([]int64, len(questions))
	choiceOrder := make(map[int64][]int64, len(questions))
	for i := range questions {
		order[i] = questions[i].ID
		ids := questions[i].ChoiceIDs()
		c.shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })
		choiceOrder[questions[i].ID] = ids
	}
	c.shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

	sess := &model.ExamSession{
		UserID:        userID,
		ExamID:        exam.ID,
		PackageID:     packageID,
		QuestionOrder: order,
		ChoiceOrder:   choiceOrder,
	}
	if err := c.store.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Concurrent start; the winner's session is authoritative.
			winner, fetchErr := c.store.GetByUserAndExam(ctx, userID, exam.ID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			c.cacheMeta(ctx, winner)
			return winner, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.cacheMeta(ctx, sess)
	return sess, nil
}

func (c *SessionCoordinator) cacheMeta(ctx context.Context, sess *model.ExamSession) {
	if c.cache == nil {
		return
	}
	fields := map[string]any{
		"user_id":    sess.UserID.String(),
		"exam_id":    sess.ExamID,
		"package_id": sess.PackageID,
	}
	if err := c.cache.CacheHash(ctx, config.CacheKey.SessionMetaKey(sess.ID), fields, c.metaTTL); err != nil {
		c.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to cache session metadata")
	}
}

// refreshed is a session after a heartbeat.
type refreshed struct {
	session *model.ExamSession
	exam    *model.Exam
	timing  Timing
	expired bool
}

// refresh locks an owned, open session, applies a heartbeat at now and
// persists the timing. When the clock has run out the session is
// finalized in the same transaction and expired is set.
func (c *SessionCoordinator) refresh(ctx context.Context, sessionID int64, userID uuid.UUID, now time.Time) (*refreshed, error) {
	var out refreshed
	err := c.store.InTx(ctx, func(tx repository.SessionTx) error {
		sess, err := c.lockOwned(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		if sess.IsCompleted() {
			return ErrSessionCompleted
		}

		exam, err := c.catalog.GetExam(ctx, sess.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}

		c.tracker.Tick(sess, now)
		if err := tx.UpdateTiming(ctx, sess.ID, sess.StartedAt, sess.TickedAt); err != nil {
			return fmt.Errorf("update timing: %w", err)
		}

		timing := c.tracker.Evaluate(sess, exam.DurationMinutes)
		if timing.Expired() {
			if _, err := c.scorer.finalizeLocked(ctx, tx, sess, now); err != nil {
				return err
			}
			out.expired = true
		}
		out.session, out.exam, out.timing = sess, exam, timing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SessionCoordinator) lockOwned(ctx context.Context, tx repository.SessionTx, sessionID int64, userID uuid.UUID) (*model.ExamSession, error) {
	sess, err := tx.LockSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (c *SessionCoordinator) getOwned(ctx context.Context, sessionID int64, userID uuid.UUID) (*model.ExamSession, error) {
	sess, err := c.store.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetCurrentQuestion returns the question at index, or at the current
// position when index is nil. Once every question is answered the current
// position points past the end and only an explicit index is accepted.
func (c *SessionCoordinator) GetCurrentQuestion(ctx context.Context, sessionID int64, userID uuid.UUID, index *int) (*model.QuestionView, error) {
	r, err := c.refresh(ctx, sessionID, userID, c.now())
	if err != nil {
		return nil, err
	}
	if r.expired {
		return nil, ErrTimeUp
	}
	sess := r.session

	total := len(sess.QuestionOrder)
	if total == 0 {
		return nil, ErrNoQuestions
	}
	idx := sess.CurrentPosition
	if index != nil {
		idx = *index
	}
	if idx < 0 || idx >= total {
		return nil, ErrInvalidIndex
	}

	qid := sess.QuestionOrder[idx]
	q, err := c.catalog.GetQuestion(ctx, qid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("question %d: %w", qid, ErrCorruptSession)
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if q.ExamID != sess.ExamID {
		return nil, fmt.Errorf("question %d: %w", qid, ErrCorruptSession)
	}

	view := &model.QuestionView{
		SessionID:      sess.ID,
		ExamID:         sess.ExamID,
		QuestionID:     q.ID,
		QuestionText:   q.QuestionText,
		ImageURL:       q.ImageURL,
		AudioURL:       q.AudioURL,
		OrderedChoices: orderedChoices(q, sess.ChoiceOrder[qid]),
		Index:          idx,
		Position:       sess.CurrentPosition,
		TotalQuestions: total,
		SecondsLeft:    r.timing.SecondsLeftPtr(),
		ExpiresAt:      r.timing.ExpiresAtPtr(),
	}

	answer, err := c.store.FindAnswer(ctx, sess.ID, qid)
	switch {
	case err == nil:
		view.SelectedChoiceID = &answer.ChoiceID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find answer: %w", err)
	}
	return view, nil
}

// orderedChoices arranges the question's choices per the stored order,
// falling back to catalog order when none was stored.
func orderedChoices(q *model.Question, order []int64) []model.ChoiceForUser {
	if len(order) == 0 {
		order = q.ChoiceIDs()
	}
	out := make([]model.ChoiceForUser, 0, len(order))
	for _, id := range order {
		ch, ok := q.ChoiceByID(id)
		if !ok {
			continue
		}
		out = append(out, model.ChoiceForUser{ID: ch.ID, ChoiceText: ch.ChoiceText, ImageURL: ch.ImageURL})
	}
	return out
}

// SubmitAnswer records an answer under the (session, question) lock and
// recomputes the session position from the full answer set. Answering the
// last question does not complete the session.
func (c *SessionCoordinator) SubmitAnswer(ctx context.Context, sessionID int64, userID uuid.UUID, in model.AnswerInput) (*model.AnswerOutcome, error) {
	r, err := c.refresh(ctx, sessionID, userID, c.now())
	if err != nil {
		return nil, err
	}
	if r.expired {
		return nil, ErrTimeUp
	}
	sess := r.session

	if _, err := resolveIndex(sess, in.QuestionID, in.Index); err != nil {
		return nil, err
	}
	choices, ok := sess.ChoiceOrder[in.QuestionID]
	if !ok {
		return nil, fmt.Errorf("choice order of question %d: %w", in.QuestionID, ErrCorruptSession)
	}
	if !containsID(choices, in.ChoiceID) {
		return nil, ErrChoiceNotInQuestion
	}

	key := config.CacheKey.SessionQuestionLockKey(sess.ID, in.QuestionID)
	lock, acquired, err := c.locks.Acquire(ctx, key, c.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire answer lock: %w", err)
	}
	if !acquired {
		return nil, ErrSessionBusy
	}
	defer c.locks.Release(context.WithoutCancel(ctx), lock)

	var out model.AnswerOutcome
	err = c.store.InTx(ctx, func(tx repository.SessionTx) error {
		locked, err := c.lockOwned(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}
		if locked.IsCompleted() {
			return ErrSessionCompleted
		}

		if _, err := c.ledger.Upsert(ctx, tx, locked.ID, in.QuestionID, in.ChoiceID); err != nil {
			return err
		}
		pos, err := c.ledger.RecomputePosition(ctx, tx, locked.ID, locked.QuestionOrder)
		if err != nil {
			return err
		}
		if err := tx.UpdatePosition(ctx, locked.ID, pos); err != nil {
			return fmt.Errorf("update position: %w", err)
		}
		locked.CurrentPosition = pos

		// Re-check the clock now that the answer is stored.
		now := c.now()
		c.tracker.Tick(locked, now)
		if err := tx.UpdateTiming(ctx, locked.ID, locked.StartedAt, locked.TickedAt); err != nil {
			return fmt.Errorf("update timing: %w", err)
		}
		timing := c.tracker.Evaluate(locked, r.exam.DurationMinutes)

		out = model.AnswerOutcome{
			NextPosition: pos,
			SecondsLeft:  timing.SecondsLeftPtr(),
			ExpiresAt:    timing.ExpiresAtPtr(),
		}
		if timing.Expired() {
			if _, err := c.scorer.finalizeLocked(ctx, tx, locked, now); err != nil {
				return err
			}
			zero := 0
			out.Finished = true
			out.SecondsLeft = &zero
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// resolveIndex locates questionID in the session order. An explicit index
// must point at questionID.
func resolveIndex(sess *model.ExamSession, questionID int64, index *int) (int, error) {
	total := len(sess.QuestionOrder)
	if total == 0 {
		return 0, ErrNoQuestions
	}
	if index != nil {
		if *index < 0 || *index >= total {
			return 0, ErrInvalidIndex
		}
		if sess.QuestionOrder[*index] != questionID {
			return 0, ErrQuestionMismatch
		}
		return *index, nil
	}
	idx := sess.IndexOf(questionID)
	if idx < 0 {
		return 0, ErrQuestionNotInSession
	}
	return idx, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ResumeSession reports progress without touching the session.
func (c *SessionCoordinator) ResumeSession(ctx context.Context, sessionID int64, userID uuid.UUID) (*model.ResumeView, error) {
	sess, err := c.getOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	view := &model.ResumeView{
		SessionID:       sess.ID,
		ExamID:          sess.ExamID,
		CurrentPosition: sess.CurrentPosition,
		TotalQuestions:  len(sess.QuestionOrder),
		Completed:       sess.IsCompleted(),
	}
	if !view.Completed && sess.CurrentPosition >= 0 && sess.CurrentPosition < len(sess.QuestionOrder) {
		next := sess.QuestionOrder[sess.CurrentPosition]
		view.NextQuestionID = &next
	}
	return view, nil
}

// PingSession is a heartbeat. An expired session is finalized and
// reported as finished with zero seconds left.
func (c *SessionCoordinator) PingSession(ctx context.Context, sessionID int64, userID uuid.UUID) (*model.PingResult, error) {
	r, err := c.refresh(ctx, sessionID, userID, c.now())
	if err != nil {
		return nil, err
	}
	res := &model.PingResult{
		SecondsLeft: r.timing.SecondsLeftPtr(),
		ExpiresAt:   r.timing.ExpiresAtPtr(),
		Finished:    r.expired,
	}
	if r.expired {
		zero := 0
		res.SecondsLeft = &zero
	}
	return res, nil
}

// SubmitSession finalizes the session. Repeated calls report finished
// without a result and leave the stored score alone.
func (c *SessionCoordinator) SubmitSession(ctx context.Context, sessionID int64, userID uuid.UUID) (*model.SubmitResult, error) {
	if _, err := c.getOwned(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	result, err := c.scorer.Finalize(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.SubmitResult{Finished: true, Result: result}, nil
}

// GetPackageProgress summarizes the user's sessions across a package.
func (c *SessionCoordinator) GetPackageProgress(ctx context.Context, packageID int64, userID uuid.UUID) (*model.PackageProgress, error) {
	exams, err := c.packageExams(ctx, packageID)
	if err != nil {
		return nil, err
	}
	examIDs := make([]int64, len(exams))
	for i, e := range exams {
		examIDs[i] = e.ID
	}

	sessions, err := c.store.ListByUserAndExams(ctx, userID, examIDs)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	progress := &model.PackageProgress{
		PackageID: packageID,
		Sessions:  make([]model.SessionSummary, 0, len(sessions)),
	}
	var scoreSum float64
	for i := range sessions {
		s := &sessions[i]
		sum := model.SessionSummary{
			SessionID:       s.ID,
			ExamID:          s.ExamID,
			CurrentPosition: s.CurrentPosition,
			CorrectAnswers:  intOrZero(s.CorrectAnswers),
			WrongAnswers:    intOrZero(s.WrongAnswers),
			EmptyAnswers:    intOrZero(s.EmptyAnswers),
			CompletedAt:     s.CompletedAt,
		}
		if s.Score != nil {
			sum.Score = *s.Score
		}
		progress.Sessions = append(progress.Sessions, sum)

		progress.Totals.Correct += sum.CorrectAnswers
		progress.Totals.Wrong += sum.WrongAnswers
		progress.Totals.Empty += sum.EmptyAnswers
		scoreSum += sum.Score
	}
	if n := len(progress.Sessions); n > 0 {
		progress.Totals.AverageScore = scoreSum / float64(n)
	}
	return progress, nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
