package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/middleware"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
	"github.com/stemsi/exstem-tryout/internal/validator"
	ws "github.com/stemsi/exstem-tryout/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one exam session to its owner over a WebSocket.
type WSHandler struct {
	coordinator *service.SessionCoordinator
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(coordinator *service.SessionCoordinator, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/exam/session/:session_id/stream?token=
// Heartbeats, question fetches, answers and submission over one connection.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	// Ownership and completion are checked before upgrading so failures
	// surface as plain HTTP errors.
	resume, err := h.coordinator.ResumeSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	if resume.Completed {
		response.Fail(c, http.StatusForbidden, response.ErrSessionCompleted)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &wsSession{
		conn:      conn,
		h:         h,
		sessionID: sessionID,
		userID:    claims.UserID,
		log: h.log.With().
			Int64("session_id", sessionID).
			Str("user_id", claims.UserID.String()).
			Logger(),
	}
	s.log.Info().Msg("User connected")
	s.serve(c.Request.Context())
}

type wsSession struct {
	conn      *websocket.Conn
	h         *WSHandler
	sessionID int64
	userID    uuid.UUID
	log       zerolog.Logger
}

func (s *wsSession) serve(ctx context.Context) {
	for {
		req, err := ws.ReadRequest(s.conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				_ = ws.WriteError(s.conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		var done bool
		switch req.Action {
		case ws.ActionPing:
			done = s.handlePing(ctx)
		case ws.ActionQuestion:
			done = s.handleQuestion(ctx, req.Body)
		case ws.ActionAnswer:
			done = s.handleAnswer(ctx, req.Body)
		case ws.ActionSubmit:
			done = s.handleSubmit(ctx)
		default:
			s.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
			_ = ws.WriteError(s.conn, string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
		}
		if done {
			return
		}
	}
}

// fail reports err and tells whether the session can no longer be used.
func (s *wsSession) fail(err error) bool {
	status, code := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Stream action failed")
	}
	_ = ws.WriteError(s.conn, string(code), response.GetMessage(code))
	return errors.Is(err, service.ErrTimeUp) || errors.Is(err, service.ErrSessionCompleted) ||
		errors.Is(err, service.ErrSessionNotFound)
}

func (s *wsSession) handlePing(ctx context.Context) bool {
	res, err := s.h.coordinator.PingSession(ctx, s.sessionID, s.userID)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteEvent(s.conn, ws.EventPong, res)
	if res.Finished {
		_ = ws.WriteEvent(s.conn, ws.EventFinished, res)
		return true
	}
	return false
}

func (s *wsSession) handleQuestion(ctx context.Context, body json.RawMessage) bool {
	var req ws.QuestionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = ws.WriteError(s.conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return false
	}
	view, err := s.h.coordinator.GetCurrentQuestion(ctx, s.sessionID, s.userID, req.Index)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteEvent(s.conn, ws.EventQuestion, view)
	return false
}

func (s *wsSession) handleAnswer(ctx context.Context, body json.RawMessage) bool {
	var payload answerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		_ = ws.WriteError(s.conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return false
	}
	in := payload.toInput()
	if fields := validator.Validate(&in); fields != nil {
		_ = ws.WriteError(s.conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation))
		return false
	}

	out, err := s.h.coordinator.SubmitAnswer(ctx, s.sessionID, s.userID, in)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteEvent(s.conn, ws.EventAnswered, out)
	if out.Finished {
		_ = ws.WriteEvent(s.conn, ws.EventFinished, out)
		return true
	}
	return false
}

func (s *wsSession) handleSubmit(ctx context.Context) bool {
	res, err := s.h.coordinator.SubmitSession(ctx, s.sessionID, s.userID)
	if err != nil {
		return s.fail(err)
	}
	s.log.Info().Msg("Session submitted over stream")
	_ = ws.WriteEvent(s.conn, ws.EventFinished, res)
	return true
}
