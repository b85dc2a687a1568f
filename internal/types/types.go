package types

import "encoding/json"

// Client message types.
const (
	MsgVoteFirst    = "VOTE:FIRST"
	MsgVoteSecond   = "VOTE:SECOND"
	MsgMafiaTarget  = "ACTION:MAFIA_TARGET"
	MsgPoliceTarget = "ACTION:POLICE_TARGET"
	MsgDoctorTarget = "ACTION:DOCTOR_TARGET"
	MsgAction       = "ACTION"
	MsgPoliceResult = "REQUEST:POLICE_RESULT"
	MsgChat         = "CHAT"
)

// Replies sent only to the client that made the request.
const (
	MsgAck     = "ACK"
	MsgRefused = "REFUSED"
	MsgError   = "error"
)

type ClientMessage struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId,omitempty"`
	Role     string `json:"role,omitempty"`
	Execute  *bool  `json:"execute,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ServerMessage is the envelope for everything written to a socket. Data is
// the event payload already encoded as JSON.
type ServerMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Request string          `json:"request,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
}
