package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait exceeds the client heartbeat interval several times over.
	readWait = 2 * time.Minute
)

// WriteEvent sends an event with its payload.
func WriteEvent(conn *websocket.Conn, event Event, data interface{}) error {
	return writeTyped(conn, EventResponse{Event: event, Data: data})
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, message string) error {
	return writeTyped(conn, ErrorResponse{
		Event:   EventError,
		Code:    code,
		Message: message,
	})
}

func writeTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadRequest reads one client message and peeks at its action.
func ReadRequest(conn *websocket.Conn) (*Request, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var env RequestEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Request{Action: env.Action, Body: msg}, nil
}

// ErrMalformed marks a message that is not a JSON object. The connection
// stays usable.
var ErrMalformed = errors.New("malformed message")
