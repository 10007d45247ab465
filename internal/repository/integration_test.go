//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/coordination"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
	"github.com/stemsi/exstem-tryout/internal/service"
)

func TestPostgresSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn := startPostgres(t, ctx)
	migrateUp(t, dsn)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	pkgID, examID := seedCatalog(t, ctx, pool)

	catalog := repository.NewCatalogRepository(pool)
	entitlements := repository.NewUserPackageRepository(pool)
	sessions := repository.NewExamSessionRepository(pool)
	user := uuid.New()

	// ─── Entitlements ──────────────────────────────────────────────────
	if ok, _ := entitlements.HasPackage(ctx, user, pkgID); ok {
		t.Fatal("user should not own the package yet")
	}
	for i := 0; i < 2; i++ {
		if err := entitlements.Grant(ctx, user, pkgID); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	if ok, err := entitlements.HasPackage(ctx, user, pkgID); err != nil || !ok {
		t.Fatalf("HasPackage = %v, %v", ok, err)
	}

	// ─── Catalog ───────────────────────────────────────────────────────
	if _, err := catalog.GetPackage(ctx, pkgID+1000); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing package error = %v", err)
	}
	questions, err := catalog.ListExamQuestions(ctx, examID)
	if err != nil || len(questions) != 3 {
		t.Fatalf("ListExamQuestions = %d, %v", len(questions), err)
	}
	for _, q := range questions {
		if len(q.Choices) != 4 {
			t.Fatalf("question %d has %d choices", q.ID, len(q.Choices))
		}
	}

	// ─── Session rows ──────────────────────────────────────────────────
	order := []int64{questions[2].ID, questions[0].ID, questions[1].ID}
	s := &model.ExamSession{
		UserID:        user,
		ExamID:        examID,
		PackageID:     pkgID,
		QuestionOrder: order,
		ChoiceOrder:   map[int64][]int64{questions[0].ID: questions[0].ChoiceIDs()},
	}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *s
	if err := sessions.Create(ctx, &dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("duplicate create error = %v", err)
	}

	got, err := sessions.GetByUserAndExam(ctx, user, examID)
	if err != nil {
		t.Fatalf("GetByUserAndExam: %v", err)
	}
	if fmt.Sprint(got.QuestionOrder) != fmt.Sprint(order) {
		t.Errorf("question order = %v, want %v", got.QuestionOrder, order)
	}
	if len(got.ChoiceOrder[questions[0].ID]) != 4 {
		t.Errorf("choice order not round-tripped: %v", got.ChoiceOrder)
	}

	// ─── Transactions ──────────────────────────────────────────────────
	err = sessions.InTx(ctx, func(tx repository.SessionTx) error {
		if _, err := tx.LockSession(ctx, s.ID); err != nil {
			return err
		}
		if err := tx.InsertAnswer(ctx, &model.UserAnswer{SessionID: s.ID, QuestionID: order[0], ChoiceID: correctOf(questions, order[0])}); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}
	if answers, _ := sessions.ListAnswers(ctx, s.ID); len(answers) != 0 {
		t.Fatalf("rolled back answer persisted: %v", answers)
	}

	err = sessions.InTx(ctx, func(tx repository.SessionTx) error {
		a := &model.UserAnswer{SessionID: s.ID, QuestionID: order[0], ChoiceID: correctOf(questions, order[0])}
		if err := tx.InsertAnswer(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertAnswer(ctx, &model.UserAnswer{SessionID: s.ID, QuestionID: order[0], ChoiceID: a.ChoiceID}); !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("duplicate insert error = %v", err)
		}
		return nil
	})
	// A unique violation aborts the Postgres transaction, so the outer commit fails.
	if err == nil {
		t.Fatal("expected aborted transaction")
	}

	err = sessions.InTx(ctx, func(tx repository.SessionTx) error {
		return tx.InsertAnswer(ctx, &model.UserAnswer{SessionID: s.ID, QuestionID: order[0], ChoiceID: correctOf(questions, order[0])})
	})
	if err != nil {
		t.Fatalf("insert answer: %v", err)
	}

	err = sessions.InTx(ctx, func(tx repository.SessionTx) error {
		answered, correct, err := tx.TallyAnswers(ctx, s.ID)
		if err != nil {
			return err
		}
		if answered != 1 || correct != 1 {
			return fmt.Errorf("tally = %d/%d", answered, correct)
		}
		res := service.Score(len(order), answered, correct, service.DefaultPolicy)
		if err := tx.SaveResult(ctx, s.ID, res, time.Now()); err != nil {
			return err
		}
		if err := tx.SaveResult(ctx, s.ID, res, time.Now()); !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("second SaveResult error = %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	final, err := sessions.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !final.IsCompleted() || final.CorrectAnswers == nil || *final.CorrectAnswers != 1 || *final.EmptyAnswers != 2 {
		t.Fatalf("unexpected final session: %+v", final)
	}
}

func TestCoordinatorAgainstPostgresAndRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn := startPostgres(t, ctx)
	migrateUp(t, dsn)
	redisURL := startRedis(t, ctx)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	pkgID, _ := seedCatalog(t, ctx, pool)

	cfg := &config.Config{
		AnswerLockTTL:    5 * time.Second,
		OfflineThreshold: 30 * time.Second,
		SessionMetaTTL:   time.Hour,
	}
	log := zerolog.Nop()
	catalog := repository.NewCatalogRepository(pool)
	entitlements := repository.NewUserPackageRepository(pool)
	sessions := repository.NewExamSessionRepository(pool)
	coord := coordination.NewRedisStore(rdb)
	coordinator := service.NewSessionCoordinator(catalog, entitlements, sessions,
		service.NewLockManager(coord, log), service.NewScorer(catalog, sessions, log), coord, cfg, log)

	user := uuid.New()
	if err := entitlements.Grant(ctx, user, pkgID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	started, err := coordinator.StartPackage(ctx, user, pkgID)
	if err != nil || len(started) != 1 {
		t.Fatalf("StartPackage = %d, %v", len(started), err)
	}
	sid := started[0].ID

	again, err := coordinator.StartPackage(ctx, user, pkgID)
	if err != nil || again[0].ID != sid {
		t.Fatalf("restart changed the session: %v", err)
	}

	for range started[0].QuestionOrder {
		q, err := coordinator.GetCurrentQuestion(ctx, sid, user, nil)
		if err != nil {
			t.Fatalf("GetCurrentQuestion: %v", err)
		}
		full, err := catalog.GetQuestion(ctx, q.QuestionID)
		if err != nil {
			t.Fatalf("GetQuestion: %v", err)
		}
		cid := correctOf([]model.Question{*full}, q.QuestionID)
		if _, err := coordinator.SubmitAnswer(ctx, sid, user, model.AnswerInput{QuestionID: q.QuestionID, ChoiceID: cid}); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	res, err := coordinator.SubmitSession(ctx, sid, user)
	if err != nil {
		t.Fatalf("SubmitSession: %v", err)
	}
	if res.Result == nil || res.Result.Correct != 3 || res.Result.RawScore != 12 {
		t.Fatalf("unexpected result: %+v", res.Result)
	}

	if n, err := rdb.Exists(ctx, config.CacheKey.SessionMetaKey(sid)).Result(); err != nil || n != 1 {
		t.Errorf("session meta not cached: %d, %v", n, err)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exstem", "POSTGRES_PASSWORD": "exstem_secret", "POSTGRES_DB": "exstem_tryout"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://exstem:exstem_secret@%s:%s/exstem_tryout?sslmode=disable", host, port.Port())
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func migrateUp(t *testing.T, dsn string) {
	t.Helper()
	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
}

// seedCatalog inserts a SARJANA package with one 60-minute TKA subtest of
// three questions. Each question's first choice is correct.
func seedCatalog(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (pkgID, examID int64) {
	t.Helper()
	if err := pool.QueryRow(ctx,
		`INSERT INTO packages (title, type, published) VALUES ('Tryout 1', 'SARJANA', TRUE) RETURNING id`,
	).Scan(&pkgID); err != nil {
		t.Fatalf("insert package: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO exams (title, type, duration) VALUES ('TKA Saintek', 'TKA', 60) RETURNING id`,
	).Scan(&examID); err != nil {
		t.Fatalf("insert exam: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO package_exams (package_id, exam_id) VALUES ($1, $2)`, pkgID, examID); err != nil {
		t.Fatalf("link exam: %v", err)
	}
	for i := 1; i <= 3; i++ {
		var qid int64
		if err := pool.QueryRow(ctx,
			`INSERT INTO questions (exam_id, question_text) VALUES ($1, $2) RETURNING id`,
			examID, fmt.Sprintf("Soal %d", i),
		).Scan(&qid); err != nil {
			t.Fatalf("insert question: %v", err)
		}
		for j := 0; j < 4; j++ {
			if _, err := pool.Exec(ctx,
				`INSERT INTO question_choices (question_id, choice_text, is_correct) VALUES ($1, $2, $3)`,
				qid, fmt.Sprintf("Pilihan %c", 'A'+j), j == 0,
			); err != nil {
				t.Fatalf("insert choice: %v", err)
			}
		}
	}
	return pkgID, examID
}

func correctOf(questions []model.Question, questionID int64) int64 {
	for _, q := range questions {
		if q.ID != questionID {
			continue
		}
		for _, c := range q.Choices {
			if c.IsCorrect {
				return c.ID
			}
		}
	}
	return 0
}
