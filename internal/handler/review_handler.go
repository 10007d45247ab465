package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/middleware"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
)

// ReviewHandler serves the post-completion review.
type ReviewHandler struct {
	reviewService *service.ReviewService
	log           zerolog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService *service.ReviewService, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		log:           log.With().Str("component", "review_handler").Logger(),
	}
}

// ReviewSession godoc
// GET /api/v1/review/session/:session_id?no=
func (h *ReviewHandler) ReviewSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}
	no, ok := parseOptionalInt(c, "no")
	if !ok {
		return
	}

	review, err := h.reviewService.ReviewSession(c.Request.Context(), sessionID, claims.UserID, no)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, review)
}
