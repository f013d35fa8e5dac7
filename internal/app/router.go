package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/beaconlabs/signaling/internal/core"
	"github.com/beaconlabs/signaling/internal/domain"
)

// Router is the protocol state machine. It is stateless itself; all state
// lives in the two registries. The transport calls OnOpen/OnMessage/OnClose,
// the router drives registry mutations and outbound relay.
type Router struct {
	Sessions *Sessions
	Rooms    *Rooms
	Policy   Policy
}

func NewRouter(sessions *Sessions, rooms *Rooms, policy Policy) *Router {
	return &Router{Sessions: sessions, Rooms: rooms, Policy: policy}
}

func (rt *Router) OnOpen(id domain.ConnID, conn core.SignalConn, cancel context.CancelFunc) {
	rt.Sessions.OnConnect(id, conn, cancel)
}

// OnMessage consumes one inbound frame. A malformed payload drops that frame
// only; the connection stays open and no peer observes anything.
func (rt *Router) OnMessage(id domain.ConnID, data core.Frame) {
	msg, err := ParseMessage(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("conn", string(id)).Msg("malformed message dropped")
		return
	}

	// The user id is recorded even before any join, so a later disconnect
	// can still name the peer in its leave notice.
	if msg.UserID != "" {
		rt.Sessions.SetUser(id, msg.UserID)
	}

	switch msg.Type {
	case TypeJoin:
		rt.handleJoin(id, msg)
	case TypeLeave:
		rt.handleLeave(id, msg)
	case TypeOffer, TypeAnswer, TypeCandidate:
		rt.relay(id, msg)
	default:
		log.Warn().Str("module", "app.router").Str("type", string(msg.Type)).Msg("unrecognized message type")
	}
}

// OnClose is the implicit leave: the same cleanup as an explicit leave runs
// off the last known room, then every trace of the connection is discarded.
func (rt *Router) OnClose(id domain.ConnID) {
	user, roomID, ok := rt.Sessions.OnDisconnect(id)
	if !ok {
		return
	}
	if roomID != "" {
		rt.departRoom(id, roomID, user)
	}
}

func (rt *Router) handleJoin(id domain.ConnID, msg *Message) {
	if msg.RoomID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Msg("join without room id ignored")
		return
	}

	// A connection belongs to at most one room; joining elsewhere leaves
	// the current room first, with the usual notice.
	if cur, ok := rt.Sessions.GetRoom(id); ok && cur != msg.RoomID {
		user, _ := rt.Sessions.GetUser(id)
		rt.departRoom(id, cur, user)
		rt.Sessions.ClearRoom(id)
	}

	others := rt.Rooms.Join(msg.RoomID, id)
	rt.Sessions.SetRoom(id, msg.RoomID)
	log.Info().Str("module", "app.router").Str("conn", string(id)).Str("room", string(msg.RoomID)).Msg("join")

	rt.sendJSON(id, RoomState{
		Type:    TypeRoomState,
		RoomID:  msg.RoomID,
		Members: rt.usersOf(others),
		Count:   len(others) + 1,
	})

	user, _ := rt.Sessions.GetUser(id)
	rt.fanoutJSON(others, Notice{Type: TypeJoin, RoomID: msg.RoomID, UserID: user})
}

func (rt *Router) handleLeave(id domain.ConnID, msg *Message) {
	// An absent room id means the whole message is ignored; no partial
	// state change, no fallback to the session's room.
	if msg.RoomID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Msg("leave without room id ignored")
		return
	}
	user, _ := rt.Sessions.GetUser(id)
	rt.departRoom(id, msg.RoomID, user)
	rt.Sessions.ClearRoom(id)
	log.Info().Str("module", "app.router").Str("conn", string(id)).Str("room", string(msg.RoomID)).Msg("leave")
}

// departRoom is the single leave path shared by explicit leave, implicit
// disconnect and join-elsewhere.
func (rt *Router) departRoom(id domain.ConnID, roomID domain.RoomID, user domain.UserID) {
	remaining := rt.Rooms.Leave(roomID, id)
	rt.fanoutJSON(remaining, Notice{Type: TypeLeave, RoomID: roomID, UserID: user})
}

// relay forwards the original frame verbatim to every other room member.
// The room comes from the message, falling back to the session's current
// room; the sender is excluded by connection id, never by content.
func (rt *Router) relay(id domain.ConnID, msg *Message) {
	roomID := msg.RoomID
	if roomID == "" {
		roomID, _ = rt.Sessions.GetRoom(id)
	}
	if roomID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Str("type", string(msg.Type)).Msg("relay without room dropped")
		return
	}
	for _, member := range rt.Rooms.Members(roomID) {
		if member == id {
			continue
		}
		rt.send(member, msg.Raw())
	}
}

func (rt *Router) usersOf(conns []domain.ConnID) []domain.UserID {
	out := make([]domain.UserID, 0, len(conns))
	for _, id := range conns {
		if user, ok := rt.Sessions.GetUser(id); ok {
			out = append(out, user)
		}
	}
	return out
}

func (rt *Router) fanoutJSON(conns []domain.ConnID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("fanout marshal")
		return
	}
	for _, id := range conns {
		rt.send(id, b)
	}
}

func (rt *Router) sendJSON(id domain.ConnID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("send marshal")
		return
	}
	rt.send(id, b)
}

// send delivers one frame to one connection. Failure is local to that
// recipient: it never aborts a fan-out and is never reported to the sender.
func (rt *Router) send(id domain.ConnID, data core.Frame) {
	conn, ok := rt.Sessions.Conn(id)
	if !ok {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Msg("send to unknown connection skipped")
		return
	}
	err := conn.TrySend(data)
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrBackpressure) && rt.Policy != nil {
		switch rt.Policy.OnBackpressure(id) {
		case KickMember:
			rt.Sessions.Cancel(id)
		case DropFrame, NoAction:
		}
	}
	log.Debug().Err(err).Str("module", "app.router").Str("conn", string(id)).Msg("delivery skipped")
}
