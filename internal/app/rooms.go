package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/beaconlabs/signaling/internal/domain"
)

// room holds one member set behind its own mutex so rooms never contend
// with each other. gone marks a room that has been emptied and unlinked;
// a join that lands on a gone room retries against the registry.
type room struct {
	mu      sync.Mutex
	members map[domain.ConnID]struct{}
	gone    bool
}

func (r *room) snapshot(exclude domain.ConnID) []domain.ConnID {
	out := make([]domain.ConnID, 0, len(r.members))
	for id := range r.members {
		if id == exclude {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Rooms maps room ids to member sets. Rooms are created lazily on first join
// and deleted when the last member leaves; an empty room never stays in the
// registry.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomID]*room)}
}

func (rs *Rooms) get(id domain.RoomID) *room {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.rooms[id]
}

func (rs *Rooms) getOrCreate(id domain.RoomID) *room {
	if r := rs.get(id); r != nil {
		return r
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.rooms[id]; ok {
		return r
	}
	r := &room{members: make(map[domain.ConnID]struct{})}
	rs.rooms[id] = r
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return r
}

// Join adds conn to the room, creating it if absent, and returns a snapshot
// of the other members at the moment of join. Membership is a set; joining
// twice is a no-op.
func (rs *Rooms) Join(id domain.RoomID, conn domain.ConnID) []domain.ConnID {
	for {
		r := rs.getOrCreate(id)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		r.members[conn] = struct{}{}
		others := r.snapshot(conn)
		r.mu.Unlock()
		return others
	}
}

// Leave removes conn from the room and returns a snapshot of the remaining
// members. The room is deleted once its member set is empty. Leaving an
// absent room or a room conn never joined returns nil.
func (rs *Rooms) Leave(id domain.RoomID, conn domain.ConnID) []domain.ConnID {
	r := rs.get(id)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	delete(r.members, conn)
	remaining := r.snapshot("")
	if len(r.members) == 0 {
		r.gone = true
	}
	gone := r.gone
	r.mu.Unlock()

	if gone {
		rs.mu.Lock()
		if rs.rooms[id] == r {
			delete(rs.rooms, id)
		}
		rs.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
	}
	return remaining
}

// Members returns a point-in-time snapshot of the room's members, or an
// empty slice when the room is absent.
func (rs *Rooms) Members(id domain.RoomID) []domain.ConnID {
	r := rs.get(id)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot("")
}

func (rs *Rooms) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

func (rs *Rooms) List() []RoomInfo {
	rs.mu.RLock()
	snap := make(map[domain.RoomID]*room, len(rs.rooms))
	for id, r := range rs.rooms {
		snap[id] = r
	}
	rs.mu.RUnlock()

	out := make([]RoomInfo, 0, len(snap))
	for id, r := range snap {
		r.mu.Lock()
		n := len(r.members)
		r.mu.Unlock()
		if n == 0 {
			continue
		}
		out = append(out, RoomInfo{ID: id, MemberCount: n})
	}
	return out
}
