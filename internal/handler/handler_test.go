package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/coordination"
	"github.com/stemsi/exstem-tryout/internal/middleware"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository/memory"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
	"github.com/stemsi/exstem-tryout/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

const (
	testPackage int64 = 1
	testExam    int64 = 10
)

type testServer struct {
	engine  *gin.Engine
	auth    *service.AuthService
	catalog *memory.Catalog
	store   *memory.SessionStore
	user    uuid.UUID
	token   string
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog := memory.NewCatalog()
	var questions []model.Question
	for i := int64(1); i <= 3; i++ {
		qid := testExam*10 + i
		q := model.Question{ID: qid, QuestionText: "q"}
		for j := int64(1); j <= 4; j++ {
			q.Choices = append(q.Choices, model.Choice{ID: qid*10 + j, ChoiceText: "c", IsCorrect: j == 1})
		}
		questions = append(questions, q)
	}
	catalog.AddExam(model.Exam{ID: testExam, Title: "TKA", Type: model.ExamTypeTKA, DurationMinutes: 60}, questions...)
	catalog.AddPackage(model.Package{ID: testPackage, Title: "S1", Type: model.PackageTypeSarjana}, testExam)

	user := uuid.New()
	catalog.Grant(user, testPackage)

	cfg := &config.Config{
		JWTSecret:        "handler-test",
		AnswerLockTTL:    5 * time.Second,
		OfflineThreshold: 30 * time.Second,
		SessionMetaTTL:   time.Hour,
	}
	log := zerolog.Nop()
	store := memory.NewSessionStore(catalog)
	coord := coordination.NewMemoryStore()
	scorer := service.NewScorer(catalog, store, log)
	coordinator := service.NewSessionCoordinator(catalog, catalog, store, service.NewLockManager(coord, log), scorer, coord, cfg, log)
	auth := service.NewAuthService(cfg)

	sessions := NewSessionHandler(coordinator, log)
	reviews := NewReviewHandler(service.NewReviewService(catalog, store), log)
	stream := NewWSHandler(coordinator, log, nil)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	api := r.Group("/api/v1", middleware.RequireUserJWT(auth))
	api.POST("/exam/package/:package_id/start", sessions.StartPackage)
	api.GET("/exam/package/:package_id/progress", sessions.GetPackageProgress)
	api.GET("/exam/session/:session_id/question", sessions.GetQuestion)
	api.POST("/exam/session/:session_id/answer", sessions.SubmitAnswer)
	api.GET("/exam/session/:session_id/resume", sessions.ResumeSession)
	api.POST("/exam/session/:session_id/ping", sessions.PingSession)
	api.POST("/exam/session/:session_id/submit", sessions.SubmitSession)
	api.GET("/review/session/:session_id", reviews.ReviewSession)
	r.GET("/ws/v1/exam/session/:session_id/stream", middleware.RequireWSAuth(auth), stream.SessionStream)

	token, err := auth.GenerateToken(user, "user", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{engine: r, auth: auth, catalog: catalog, store: store, user: user, token: token}
}

func (s *testServer) request(t *testing.T, token, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w.Code, env
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	return s.request(t, s.token, method, path, body)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return v
}

// startSession starts the test package and returns the stored session.
func (s *testServer) startSession(t *testing.T) *model.ExamSession {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/exam/package/1/start", nil)
	if status != http.StatusOK {
		t.Fatalf("start: %d %+v", status, env.Error)
	}
	data := decode[struct {
		Sessions []model.StartedSession `json:"sessions"`
	}](t, env)
	if len(data.Sessions) != 1 || data.Sessions[0].TotalQuestions != 3 {
		t.Fatalf("unexpected sessions %+v", data.Sessions)
	}
	sess, err := s.store.GetByID(t.Context(), data.Sessions[0].SessionID)
	if err != nil {
		t.Fatal(err)
	}
	return sess
}
