package relay

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mu       sync.Mutex
	received [][]byte
	sendErr  error
}

func (m *mockSender) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockSender) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func newTestServer() *Server {
	return NewServer(zerolog.Nop())
}

func componentAdd(room string) Event {
	raw := fmt.Sprintf(`{"type":"component_add","roomId":%q,"viewId":"v1","component":{"id":"c1","type":"button"}}`, room)
	ev, err := DecodeEvent([]byte(raw))
	if err != nil {
		panic(err)
	}
	return ev
}

func TestJoinLeaveMembership(t *testing.T) {
	s := newTestServer()
	c := s.Connect(&mockSender{})

	s.Join(c, "r1")
	assert.Contains(t, s.RoomsOf(c), "r1")
	assert.Contains(t, s.MembersOf("r1"), c)

	s.Leave(c, "r1")
	assert.NotContains(t, s.RoomsOf(c), "r1")
	assert.NotContains(t, s.MembersOf("r1"), c)
}

func TestJoinLeaveIdempotent(t *testing.T) {
	s := newTestServer()
	c := s.Connect(&mockSender{})

	s.Join(c, "r1")
	s.Join(c, "r1")
	assert.Len(t, s.MembersOf("r1"), 1)
	assert.Len(t, s.RoomsOf(c), 1)

	s.Leave(c, "r1")
	s.Leave(c, "r1")
	assert.Empty(t, s.MembersOf("r1"))
	assert.Empty(t, s.RoomsOf(c))

	// Leaving a room never joined is a no-op.
	s.Leave(c, "never-joined")
	assert.Empty(t, s.RoomsOf(c))
}

func TestLeaveAll(t *testing.T) {
	s := newTestServer()
	c := s.Connect(&mockSender{})
	other := s.Connect(&mockSender{})

	s.Join(c, "r1")
	s.Join(c, "r2")
	s.Join(other, "r1")

	s.LeaveAll(c)

	assert.Empty(t, s.RoomsOf(c))
	assert.NotContains(t, s.MembersOf("r1"), c)
	assert.NotContains(t, s.MembersOf("r2"), c)
	assert.Contains(t, s.MembersOf("r1"), other)
}

func TestRelayExcludesSender(t *testing.T) {
	s := newTestServer()
	senderConn := &mockSender{}
	recv1 := &mockSender{}
	recv2 := &mockSender{}

	a := s.Connect(senderConn)
	b := s.Connect(recv1)
	c := s.Connect(recv2)
	s.Join(a, "r1")
	s.Join(b, "r1")
	s.Join(c, "r1")

	s.Relay(a, componentAdd("r1"))

	assert.Len(t, recv1.getReceived(), 1)
	assert.Len(t, recv2.getReceived(), 1)
	assert.Empty(t, senderConn.getReceived(), "sender must not receive its own event")
}

func TestRoomIsolation(t *testing.T) {
	s := newTestServer()
	senderConn := &mockSender{}
	otherRoom := &mockSender{}

	a := s.Connect(senderConn)
	b := s.Connect(otherRoom)
	s.Join(a, "r1")
	s.Join(b, "r2")

	s.Relay(a, componentAdd("r1"))

	assert.Empty(t, otherRoom.getReceived(), "event must not leak across rooms")
}

func TestPerSenderOrdering(t *testing.T) {
	s := newTestServer()
	recv := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recv)
	s.Join(a, "r1")
	s.Join(b, "r1")

	for i := 0; i < 20; i++ {
		raw := fmt.Sprintf(`{"type":"component_position","roomId":"r1","viewId":"v1","componentId":"c1","position":{"x":%d,"y":0}}`, i)
		ev, err := DecodeEvent([]byte(raw))
		require.NoError(t, err)
		s.Relay(a, ev)
	}

	got := recv.getReceived()
	require.Len(t, got, 20)
	for i, msg := range got {
		assert.Contains(t, string(msg), fmt.Sprintf(`"x":%d`, i))
	}
}

func TestPostDisconnectSilence(t *testing.T) {
	s := newTestServer()
	recv := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recv)
	s.Join(a, "r1")
	s.Join(b, "r1")

	s.Disconnect(b)
	s.Relay(a, componentAdd("r1"))

	assert.Empty(t, recv.getReceived(), "no delivery after disconnect")
	assert.Equal(t, []string{a}, s.MembersOf("r1"))
}

func TestDisconnectIdempotent(t *testing.T) {
	s := newTestServer()
	c := s.Connect(&mockSender{})
	s.Join(c, "r1")

	s.Disconnect(c)
	s.Disconnect(c)
	s.Disconnect("no-such-connection")

	rooms, conns := s.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, conns)
}

func TestMultiRoomScenario(t *testing.T) {
	// A and B join R1; A alone joins R2. Events in R1 reach B exactly once,
	// events in R2 never do.
	s := newTestServer()
	recvB := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recvB)
	s.Join(a, "R1")
	s.Join(b, "R1")
	s.Join(a, "R2")

	ev := componentAdd("R1")
	s.Relay(a, ev)
	require.Len(t, recvB.getReceived(), 1)
	assert.Equal(t, ev.Raw, recvB.getReceived()[0], "payload must be forwarded unmodified")

	s.Relay(a, componentAdd("R2"))
	assert.Len(t, recvB.getReceived(), 1, "B never joined R2")
}

func TestAbruptDisconnectScenario(t *testing.T) {
	// B vanishes without leave_room; A's next broadcast skips it silently.
	s := newTestServer()
	recvB := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recvB)
	s.Join(a, "R1")
	s.Join(b, "R1")

	s.Disconnect(b)

	ev, err := DecodeEvent([]byte(`{"type":"view_background","roomId":"R1","viewId":"v1","backgroundColor":"#ffffff"}`))
	require.NoError(t, err)
	s.Relay(a, ev)

	assert.Empty(t, recvB.getReceived())
	assert.Equal(t, []string{a}, s.MembersOf("R1"))
}

func TestRelayWithoutRoomID(t *testing.T) {
	s := newTestServer()
	recv := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recv)
	s.Join(a, "r1")
	s.Join(b, "r1")

	s.Relay(a, Event{Kind: KindComponentAdd, Raw: []byte(`{"type":"component_add"}`)})

	assert.Empty(t, recv.getReceived())
	assert.Len(t, s.MembersOf("r1"), 2, "member sets must be untouched")
}

func TestRelayRequiresMembership(t *testing.T) {
	s := newTestServer()
	recv := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recv)
	s.Join(b, "r1")
	// a never joined r1.

	s.Relay(a, componentAdd("r1"))

	assert.Empty(t, recv.getReceived())
}

func TestFailedDeliveryDoesNotAbortFanOut(t *testing.T) {
	s := newTestServer()
	broken := &mockSender{sendErr: errors.New("transport closed")}
	healthy := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(broken)
	c := s.Connect(healthy)
	s.Join(a, "r1")
	s.Join(b, "r1")
	s.Join(c, "r1")

	s.Relay(a, componentAdd("r1"))

	assert.Len(t, healthy.getReceived(), 1, "remaining recipients still get the event")
}

func TestConcurrentJoinLeaveRelay(t *testing.T) {
	s := newTestServer()
	recv := &mockSender{}

	a := s.Connect(&mockSender{})
	b := s.Connect(recv)
	s.Join(a, "r1")
	s.Join(b, "r1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := s.Connect(&mockSender{})
			room := fmt.Sprintf("r%d", n%3)
			for j := 0; j < 50; j++ {
				s.Join(c, room)
				s.Relay(c, componentAdd(room))
				s.Leave(c, room)
			}
			s.Disconnect(c)
		}(i)
	}
	wg.Wait()

	// The two original members survive with consistent state.
	assert.ElementsMatch(t, []string{a, b}, s.MembersOf("r1"))
	assert.Equal(t, []string{"r1"}, s.RoomsOf(a))
}

func TestStats(t *testing.T) {
	s := newTestServer()
	rooms, conns := s.Stats()
	require.Equal(t, 0, rooms)
	require.Equal(t, 0, conns)

	c1 := s.Connect(&mockSender{})
	c2 := s.Connect(&mockSender{})
	s.Join(c1, "r1")
	s.Join(c2, "r2")

	rooms, conns = s.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 2, conns)

	s.Disconnect(c1)
	rooms, conns = s.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, conns)
}
