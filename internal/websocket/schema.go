package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing     Action = "ping"
	ActionQuestion Action = "question"
	ActionAnswer   Action = "answer"
	ActionSubmit   Action = "submit"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// Request is a raw client message. Body keeps the full message so the
// action handler can decode its own fields.
type Request struct {
	Action Action
	Body   json.RawMessage
}

// QuestionRequest asks for a question; Index defaults to the current position.
type QuestionRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventPong     Event = "pong"
	EventQuestion Event = "question"
	EventAnswered Event = "answered"
	EventFinished Event = "finished"
	EventError    Event = "error"
)

// EventResponse carries the result of an action.
type EventResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

// ErrorResponse reports a failed action. Code matches the REST error codes.
type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
