package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/middleware"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
	"github.com/stemsi/exstem-tryout/internal/validator"
)

// SessionHandler exposes the exam session operations over REST.
type SessionHandler struct {
	coordinator *service.SessionCoordinator
	log         zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(coordinator *service.SessionCoordinator, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		coordinator: coordinator,
		log:         log.With().Str("component", "session_handler").Logger(),
	}
}

// StartPackage godoc
// POST /api/v1/exam/package/:package_id/start
// Creates (or returns) the user's sessions for every subtest of the package.
func (h *SessionHandler) StartPackage(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	packageID, ok := parseIDParam(c, "package_id")
	if !ok {
		return
	}

	sessions, err := h.coordinator.StartPackage(c.Request.Context(), claims.UserID, packageID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	started := make([]model.StartedSession, 0, len(sessions))
	for _, s := range sessions {
		started = append(started, model.StartedSession{
			SessionID:      s.ID,
			ExamID:         s.ExamID,
			UserID:         s.UserID,
			TotalQuestions: len(s.QuestionOrder),
			StartedAt:      s.StartedAt,
			CompletedAt:    s.CompletedAt,
		})
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": started})
}

// GetPackageProgress godoc
// GET /api/v1/exam/package/:package_id/progress
func (h *SessionHandler) GetPackageProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	packageID, ok := parseIDParam(c, "package_id")
	if !ok {
		return
	}

	progress, err := h.coordinator.GetPackageProgress(c.Request.Context(), packageID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

// GetQuestion godoc
// GET /api/v1/exam/session/:session_id/question?index=
// Returns the question at index, or at the current position.
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}
	index, ok := parseOptionalInt(c, "index")
	if !ok {
		return
	}

	view, err := h.coordinator.GetCurrentQuestion(c.Request.Context(), sessionID, claims.UserID, index)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// SubmitAnswer godoc
// POST /api/v1/exam/session/:session_id/answer
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	var payload answerPayload
	if fields := validator.Bind(c, &payload); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
		return
	}
	in := payload.toInput()
	if fields := validator.Validate(&in); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.coordinator.SubmitAnswer(c.Request.Context(), sessionID, claims.UserID, in)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// ResumeSession godoc
// GET /api/v1/exam/session/:session_id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	view, err := h.coordinator.ResumeSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// PingSession godoc
// POST /api/v1/exam/session/:session_id/ping
func (h *SessionHandler) PingSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	res, err := h.coordinator.PingSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// SubmitSession godoc
// POST /api/v1/exam/session/:session_id/submit
// Finalizes the session; repeated calls are no-ops.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	res, err := h.coordinator.SubmitSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
