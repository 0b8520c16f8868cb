package protocol

import "fmt"

// Transport connects one peer to a room. Channels are named; delivery on
// pose channels may be lossy while the rest are reliable, depending on the
// implementation.
//
// Events are delivered in arrival order on the channel returned by Events,
// which is closed once the transport shuts down.
type Transport interface {
	// ClientID is the id the relay assigned to this peer, empty until the
	// Connected event has been delivered.
	ClientID() string
	// Broadcast sends payload on channel to every other peer in the room.
	// The payload is not retained after Broadcast returns.
	Broadcast(channel string, payload []byte) error
	Events() <-chan Event
	Close() error
}

// EventKind enumerates transport lifecycle and data events.
type EventKind uint8

const (
	// EventConnected carries the assigned client id.
	EventConnected EventKind = iota + 1
	// EventChannelOpen is emitted once per sync channel after connecting.
	EventChannelOpen
	EventMessage
	EventPeerJoined
	EventPeerLeft
	// EventDisconnected is the last event; Err holds the cause if any.
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventChannelOpen:
		return "channel-open"
	case EventMessage:
		return "message"
	case EventPeerJoined:
		return "peer-joined"
	case EventPeerLeft:
		return "peer-left"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is a single transport notification.
type Event struct {
	Kind     EventKind
	Channel  string
	ClientID string
	Payload  []byte
	Err      error
}
