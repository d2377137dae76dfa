package domain

import (
	"encoding/json"
	"time"
)

// AdminID is the fixed identifier of the room's display/control endpoint.
// Every phone client addresses its signaling to this peer; it is not a
// room-assigned user id.
const AdminID = "admin"

type SignalType string

const (
	SignalTypeOffer       SignalType = "offer"
	SignalTypeAnswer      SignalType = "answer"
	SignalTypeCandidate   SignalType = "ice-candidate"
	SignalTypeAdminMute   SignalType = "admin-mute"
	SignalTypeAdminUnmute SignalType = "admin-unmute"
)

// Signal is one relay message between two peers. The payload is an opaque
// blob: a session description for offer/answer, a single ICE candidate for
// ice-candidate, empty for the mute controls.
type Signal struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      SignalType      `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewSignal(from, to string, signalType SignalType, payload json.RawMessage) *Signal {
	return &Signal{
		From:      from,
		To:        to,
		Type:      signalType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
