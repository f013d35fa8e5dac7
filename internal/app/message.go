package app

import (
	"encoding/json"

	"github.com/beaconlabs/signaling/internal/core"
	"github.com/beaconlabs/signaling/internal/domain"
)

type MessageType string

const (
	TypeJoin      MessageType = "join"
	TypeLeave     MessageType = "leave"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"

	// TypeRoomState is server-to-client only: the reply a joiner gets
	// describing who is already in the room.
	TypeRoomState MessageType = "room_state"
)

// Message is the decoded envelope of one inbound signaling frame. Only the
// routing fields are decoded; the raw bytes are kept so offer/answer/candidate
// bodies can be relayed byte-for-byte without interpretation.
type Message struct {
	Type   MessageType   `json:"type"`
	UserID domain.UserID `json:"userId,omitempty"`
	RoomID domain.RoomID `json:"roomId,omitempty"`

	raw core.Frame
}

// ParseMessage decodes the envelope once at the transport boundary.
// The returned message is used once and never stored.
func ParseMessage(data core.Frame) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.raw = data
	return &m, nil
}

// Raw returns the frame exactly as received.
func (m *Message) Raw() core.Frame { return m.raw }

// IsRelay reports whether the message must be forwarded verbatim.
func (m *Message) IsRelay() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

// Notice is the synthesized join/leave broadcast sent to room members.
// UserID is omitted when the peer never identified itself.
type Notice struct {
	Type   MessageType   `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId,omitempty"`
}

// RoomState is the reply the joining client receives. Members lists the user
// ids of peers that were already present; Count includes the joiner.
type RoomState struct {
	Type    MessageType     `json:"type"`
	RoomID  domain.RoomID   `json:"roomId"`
	Members []domain.UserID `json:"members"`
	Count   int             `json:"count"`
}
