package session

import (
	"encoding/json"

	"github.com/roomstage/studio/internal/selection"
)

type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type WelcomePayload struct {
	ClientID string          `json:"clientId"`
	State    selection.State `json:"state"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	// Server → client
	TypeWelcome = "welcome"
	TypeState   = "selection.state"
	TypeError   = "error"

	// Client → server
	TypeEvent  = "selection.event"  // payload: selection.Event
	TypeEvents = "selection.events" // payload: []selection.Event, applied in order
	TypeReset  = "selection.reset"
)
