package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/coordination"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository/memory"
)

const (
	pkgSarjana      int64 = 1
	pkgPascasarjana int64 = 2

	examTKA      int64 = 10 // 60 minutes, 4 questions
	examUntimed  int64 = 11 // no duration, 2 questions
	examGradTBI  int64 = 20 // 60 minutes, 4 questions
	examEmptyTKD int64 = 30 // no questions
)

type fixture struct {
	catalog *memory.Catalog
	store   *memory.SessionStore
	coord   *coordination.MemoryStore
	coordin *SessionCoordinator
	reviews *ReviewService
	user    uuid.UUID
	now     time.Time
}

// questionsFor builds n questions for an exam. Question ids are exam*10+i,
// choice ids question*10+j, and the first choice is the correct one.
func questionsFor(examID int64, n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		qid := examID*10 + int64(i)
		q := model.Question{ID: qid, QuestionText: "question"}
		for j := 1; j <= 4; j++ {
			q.Choices = append(q.Choices, model.Choice{
				ID:         qid*10 + int64(j),
				ChoiceText: "choice",
				IsCorrect:  j == 1,
			})
		}
		qs = append(qs, q)
	}
	return qs
}

func correctChoice(qid int64) int64 { return qid*10 + 1 }
func wrongChoice(qid int64) int64   { return qid*10 + 2 }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	catalog.AddExam(model.Exam{ID: examTKA, Title: "TKA", Type: model.ExamTypeTKA, DurationMinutes: 60}, questionsFor(examTKA, 4)...)
	catalog.AddExam(model.Exam{ID: examUntimed, Title: "TKD", Type: model.ExamTypeTKD}, questionsFor(examUntimed, 2)...)
	catalog.AddExam(model.Exam{ID: examGradTBI, Title: "TBI", Type: model.ExamTypeTBI, DurationMinutes: 60}, questionsFor(examGradTBI, 4)...)
	catalog.AddExam(model.Exam{ID: examEmptyTKD, Title: "Empty", Type: model.ExamTypeTKD, DurationMinutes: 30})
	catalog.AddPackage(model.Package{ID: pkgSarjana, Title: "S1", Type: model.PackageTypeSarjana}, examTKA, examUntimed)
	catalog.AddPackage(model.Package{ID: pkgPascasarjana, Title: "S2", Type: model.PackageTypePascasarjana}, examGradTBI)
	catalog.AddPackage(model.Package{ID: 3, Title: "Broken", Type: model.PackageTypeSarjana}, examEmptyTKD)

	user := uuid.New()
	catalog.Grant(user, pkgSarjana)
	catalog.Grant(user, pkgPascasarjana)
	catalog.Grant(user, 3)

	store := memory.NewSessionStore(catalog)
	coord := coordination.NewMemoryStore()
	cfg := &config.Config{
		AnswerLockTTL:    5 * time.Second,
		OfflineThreshold: 30 * time.Second,
		SessionMetaTTL:   time.Hour,
	}

	f := &fixture{
		catalog: catalog,
		store:   store,
		coord:   coord,
		user:    user,
		now:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	coord.Now = clock

	scorer := NewScorer(catalog, store, zerolog.Nop())
	scorer.now = clock
	f.coordin = NewSessionCoordinator(catalog, catalog, store, NewLockManager(coord, zerolog.Nop()), scorer, coord, cfg, zerolog.Nop())
	f.coordin.now = clock
	f.reviews = NewReviewService(catalog, store)
	return f
}

// start starts pkg for the fixture user and returns the session of examID.
func (f *fixture) start(t *testing.T, pkg, examID int64) *model.ExamSession {
	t.Helper()
	sessions, err := f.coordin.StartPackage(context.Background(), f.user, pkg)
	if err != nil {
		t.Fatalf("start package: %v", err)
	}
	for _, s := range sessions {
		if s.ExamID == examID {
			return s
		}
	}
	t.Fatalf("no session for exam %d", examID)
	return nil
}

func (f *fixture) reload(t *testing.T, id int64) *model.ExamSession {
	t.Helper()
	s, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	return s
}

func (f *fixture) answer(t *testing.T, sess *model.ExamSession, qid, choice int64) *model.AnswerOutcome {
	t.Helper()
	out, err := f.coordin.SubmitAnswer(context.Background(), sess.ID, f.user, model.AnswerInput{QuestionID: qid, ChoiceID: choice})
	if err != nil {
		t.Fatalf("submit answer q=%d: %v", qid, err)
	}
	return out
}
