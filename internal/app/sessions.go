package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/beaconlabs/signaling/internal/core"
	"github.com/beaconlabs/signaling/internal/domain"
)

type sessionEntry struct {
	Conn   core.SignalConn
	User   domain.UserID
	Room   domain.RoomID
	Cancel context.CancelFunc
}

// Sessions tracks every open connection and its derived attributes (user id,
// current room). Pure bookkeeping; callers never touch the map directly.
type Sessions struct {
	mu      sync.RWMutex
	entries map[domain.ConnID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[domain.ConnID]*sessionEntry)}
}

// OnConnect registers a connection with no user/room association yet.
// Re-registering the same id overwrites the previous entry.
func (s *Sessions) OnConnect(id domain.ConnID, conn core.SignalConn, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("session registered")
}

func (s *Sessions) SetUser(id domain.ConnID, user domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		log.Warn().Str("module", "app.sessions").Str("conn", string(id)).Msg("set user for unknown connection")
		return
	}
	e.User = user
}

func (s *Sessions) SetRoom(id domain.ConnID, room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		log.Warn().Str("module", "app.sessions").Str("conn", string(id)).Msg("set room for unknown connection")
		return
	}
	e.Room = room
}

func (s *Sessions) ClearRoom(id domain.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.Room = ""
	}
}

func (s *Sessions) GetUser(id domain.ConnID) (domain.UserID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.User == "" {
		return "", false
	}
	return e.User, true
}

func (s *Sessions) GetRoom(id domain.ConnID) (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// Conn returns the transport endpoint bound to a connection.
func (s *Sessions) Conn(id domain.ConnID) (core.SignalConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// OnDisconnect removes the entry entirely and returns the last known user and
// room so the caller can run leave-cleanup after the transport is gone.
func (s *Sessions) OnDisconnect(id domain.ConnID) (domain.UserID, domain.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return "", "", false
	}
	delete(s.entries, id)
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("session removed")
	return e.User, e.Room, true
}

// Cancel tears down the connection's pumps via its bound cancel func.
func (s *Sessions) Cancel(id domain.ConnID) bool {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("canceled session")
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
