package service

import "errors"

// Kind classifies service errors for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindForbidden
	KindBadRequest
)

// Forbidden: the caller may not act on this session right now.
var (
	ErrNotEntitled         = errors.New("user is not entitled to this package")
	ErrPackageNotFound     = errors.New("package not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrTimeUp              = errors.New("time is up")
	ErrSessionBusy         = errors.New("session busy")
	ErrSessionNotCompleted = errors.New("session not completed yet")
	ErrInvalidToken        = errors.New("invalid token")
)

// Bad request: the input does not match the session's stored order.
var (
	ErrInvalidIndex         = errors.New("invalid question index")
	ErrQuestionMismatch     = errors.New("question does not match index")
	ErrQuestionNotInSession = errors.New("question is not part of this session")
	ErrChoiceNotInQuestion  = errors.New("choice does not belong to question")
	ErrInvalidReviewNumber  = errors.New("invalid review question number")
)

// Internal: the stored session is unusable.
var (
	ErrNoQuestions    = errors.New("session has no questions")
	ErrCorruptSession = errors.New("corrupted session question order")
)

var forbidden = []error{
	ErrNotEntitled, ErrPackageNotFound, ErrSessionNotFound, ErrSessionCompleted,
	ErrTimeUp, ErrSessionBusy, ErrSessionNotCompleted, ErrInvalidToken,
}

var badRequest = []error{
	ErrInvalidIndex, ErrQuestionMismatch, ErrQuestionNotInSession,
	ErrChoiceNotInQuestion, ErrInvalidReviewNumber,
}

// KindOf maps err to its taxonomy. Unknown errors are internal.
func KindOf(err error) Kind {
	for _, target := range forbidden {
		if errors.Is(err, target) {
			return KindForbidden
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return KindBadRequest
		}
	}
	return KindInternal
}
