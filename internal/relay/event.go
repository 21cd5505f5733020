package relay

import (
	"encoding/json"
	"errors"
)

// Kind identifies a socket message type. The set is closed: anything else is
// dropped at the transport boundary.
type Kind string

const (
	KindJoinRoom            Kind = "join_room"
	KindLeaveRoom           Kind = "leave_room"
	KindComponentUpdate     Kind = "component_update"
	KindComponentPosition   Kind = "component_position"
	KindComponentProperties Kind = "component_properties"
	KindViewBackground      Kind = "view_background"
	KindComponentAdd        Kind = "component_add"
	KindComponentRemove     Kind = "component_remove"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownKind    = errors.New("unknown event kind")
)

// Event is the envelope of one document-mutation message. Kind-specific
// fields (updates, position, properties, component, backgroundColor) stay
// inside Raw and are never inspected here; the relay forwards Raw verbatim
// so new component types need no server change.
type Event struct {
	Kind        Kind
	RoomID      string
	ViewID      string
	ComponentID string
	Raw         []byte
}

type envelope struct {
	Type        Kind   `json:"type"`
	RoomID      string `json:"roomId"`
	ViewID      string `json:"viewId"`
	ComponentID string `json:"componentId"`
}

// Broadcast reports whether events of this kind are fanned out to the room.
// join_room and leave_room drive membership instead.
func (k Kind) Broadcast() bool {
	switch k {
	case KindComponentUpdate, KindComponentPosition, KindComponentProperties,
		KindViewBackground, KindComponentAdd, KindComponentRemove:
		return true
	}
	return false
}

func validKind(k Kind) bool {
	switch k {
	case KindJoinRoom, KindLeaveRoom:
		return true
	}
	return k.Broadcast()
}

// DecodeEvent parses the envelope of a raw socket message. The original
// bytes are retained so a relayed event reaches recipients unchanged.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, ErrMalformedEvent
	}
	if !validKind(env.Type) {
		return Event{}, ErrUnknownKind
	}
	return Event{
		Kind:        env.Type,
		RoomID:      env.RoomID,
		ViewID:      env.ViewID,
		ComponentID: env.ComponentID,
		Raw:         data,
	}, nil
}
