// Package relay implements the room-scoped broadcast core of the
// collaboration server: a registry of live connections, a room membership
// index, and a fan-out that forwards document-mutation events to every other
// member of the sender's room. Events are ephemeral; persistence happens
// through the REST API after clients apply the deltas locally.
package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender delivers one serialized event to a single client. Implementations
// must not block the caller; an event that cannot be delivered is reported
// as an error and lost.
type Sender interface {
	Send(data []byte) error
}

type connState int

const (
	stateConnected connState = iota
	stateDisconnected
)

type connection struct {
	id     string
	sender Sender
	rooms  map[string]struct{}
	state  connState
}

// Server owns the connection registry and the room membership index. It is
// constructed once at process start and handed to the transport layer; there
// is no package-level instance, so tests run isolated servers freely.
type Server struct {
	mu     sync.Mutex
	conns  map[string]*connection
	rooms  map[string]map[string]*connection
	logger zerolog.Logger
}

func NewServer(logger zerolog.Logger) *Server {
	return &Server{
		conns:  make(map[string]*connection),
		rooms:  make(map[string]map[string]*connection),
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

// Connect registers a live connection and returns its identifier. The id is
// unique among currently-live connections for the connection's lifetime.
func (s *Server) Connect(sender Sender) string {
	id := uuid.New().String()

	s.mu.Lock()
	s.conns[id] = &connection{
		id:     id,
		sender: sender,
		rooms:  make(map[string]struct{}),
	}
	total := len(s.conns)
	s.mu.Unlock()

	s.logger.Info().Str("conn", id).Int("connections", total).Msg("connection registered")
	return id
}

// Disconnect tears a connection down: it leaves every joined room and is
// removed from the registry in one critical section, so no Relay call that
// starts afterwards can observe it as a member. The Connected→Disconnected
// transition fires at most once; repeated notifications for the same id are
// no-ops, as is an unknown id.
func (s *Server) Disconnect(id string) {
	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok || c.state == stateDisconnected {
		s.mu.Unlock()
		return
	}
	c.state = stateDisconnected
	for room := range c.rooms {
		s.removeMemberLocked(room, id)
	}
	c.rooms = make(map[string]struct{})
	delete(s.conns, id)
	total := len(s.conns)
	s.mu.Unlock()

	s.logger.Info().Str("conn", id).Int("connections", total).Msg("connection removed")
}

// Join adds the connection to a room. Joining a room already joined is a
// no-op, as is joining with an unknown connection id or an empty room id.
func (s *Server) Join(id, room string) {
	if room == "" {
		return
	}

	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, joined := c.rooms[room]; joined {
		s.mu.Unlock()
		return
	}
	c.rooms[room] = struct{}{}
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]*connection)
		s.rooms[room] = members
	}
	members[id] = c
	count := len(members)
	s.mu.Unlock()

	s.logger.Debug().Str("conn", id).Str("room", room).Int("members", count).Msg("joined room")
}

// Leave removes the connection from a room. Leaving a room that was never
// joined is a no-op.
func (s *Server) Leave(id, room string) {
	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, joined := c.rooms[room]; !joined {
		s.mu.Unlock()
		return
	}
	delete(c.rooms, room)
	s.removeMemberLocked(room, id)
	s.mu.Unlock()

	s.logger.Debug().Str("conn", id).Str("room", room).Msg("left room")
}

// LeaveAll removes the connection from every room it had joined. Both sides
// of the membership relation are updated under one lock acquisition, so a
// concurrent MembersOf never sees them disagree.
func (s *Server) LeaveAll(id string) {
	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	for room := range c.rooms {
		s.removeMemberLocked(room, id)
	}
	c.rooms = make(map[string]struct{})
	s.mu.Unlock()
}

// RoomsOf returns the rooms the connection has currently joined.
func (s *Server) RoomsOf(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// MembersOf returns a snapshot of the room's current member ids. An unknown
// or empty room simply has no recipients.
func (s *Server) MembersOf(room string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Relay fans an event out to every member of its room except the sender.
// Events with no room id, from unknown connections, or for rooms the sender
// has not joined are dropped silently: the protocol is fire-and-forget and
// no error ever reaches the sender. Delivery is best-effort per recipient; a
// recipient whose transport fails is skipped without aborting the fan-out.
func (s *Server) Relay(senderID string, ev Event) {
	if ev.RoomID == "" {
		s.logger.Debug().Str("conn", senderID).Str("kind", string(ev.Kind)).Msg("dropping event without room id")
		return
	}

	s.mu.Lock()
	c, ok := s.conns[senderID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, joined := c.rooms[ev.RoomID]; !joined {
		s.mu.Unlock()
		s.logger.Debug().Str("conn", senderID).Str("room", ev.RoomID).Msg("dropping event for room not joined")
		return
	}
	recipients := make([]*connection, 0, len(s.rooms[ev.RoomID]))
	for id, member := range s.rooms[ev.RoomID] {
		if id == senderID {
			continue
		}
		recipients = append(recipients, member)
	}
	s.mu.Unlock()

	for _, r := range recipients {
		if err := r.sender.Send(ev.Raw); err != nil {
			s.logger.Debug().Str("conn", r.id).Str("room", ev.RoomID).Err(err).Msg("delivery skipped")
		}
	}
}

// Stats reports the number of live rooms and connections.
func (s *Server) Stats() (rooms, conns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms), len(s.conns)
}

// removeMemberLocked drops a connection from the room index and discards the
// room once empty. Caller holds s.mu.
func (s *Server) removeMemberLocked(room, id string) {
	members, ok := s.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
}
