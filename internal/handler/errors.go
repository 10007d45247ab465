package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
)

var errorCodes = []struct {
	err  error
	code response.ErrCode
}{
	{service.ErrNotEntitled, response.ErrNotEntitled},
	{service.ErrPackageNotFound, response.ErrPackageNotFound},
	{service.ErrSessionNotFound, response.ErrSessionNotFound},
	{service.ErrSessionCompleted, response.ErrSessionCompleted},
	{service.ErrSessionNotCompleted, response.ErrSessionNotCompleted},
	{service.ErrTimeUp, response.ErrTimeUp},
	{service.ErrSessionBusy, response.ErrSessionBusy},
	{service.ErrInvalidIndex, response.ErrInvalidIndex},
	{service.ErrQuestionMismatch, response.ErrQuestionMismatch},
	{service.ErrQuestionNotInSession, response.ErrQuestionNotInSession},
	{service.ErrChoiceNotInQuestion, response.ErrChoiceNotInQuestion},
	{service.ErrInvalidReviewNumber, response.ErrInvalidReviewNumber},
	{service.ErrNoQuestions, response.ErrNoQuestions},
	{service.ErrCorruptSession, response.ErrCorruptSession},
}

// errorResponse maps a service error to an HTTP status and error code.
func errorResponse(err error) (int, response.ErrCode) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindBadRequest:
		status = http.StatusBadRequest
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status, m.code
		}
	}
	if status == http.StatusForbidden {
		return status, response.ErrForbidden
	}
	return status, response.ErrInternal
}

// failWithError writes the error envelope; internal errors are logged.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// parseOptionalInt reads an optional integer query parameter.
func parseOptionalInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			name: name + " must be an integer",
		})
		return nil, false
	}
	return &n, true
}
