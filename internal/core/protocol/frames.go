package protocol

import (
	"fmt"

	"github.com/zeusync/posesync/pkg/encoding"
)

// FrameEvents translates one relay frame into the events a client transport
// delivers. A welcome frame opens every sync channel.
func FrameEvents(f encoding.Frame) ([]Event, error) {
	switch f.Kind {
	case encoding.FrameWelcome:
		events := make([]Event, 0, 1+len(SyncChannels))
		events = append(events, Event{Kind: EventConnected, ClientID: f.ClientID})
		for _, ch := range SyncChannels {
			events = append(events, Event{Kind: EventChannelOpen, Channel: ch})
		}
		return events, nil
	case encoding.FramePeerJoined:
		return []Event{{Kind: EventPeerJoined, ClientID: f.ClientID}}, nil
	case encoding.FramePeerLeft:
		return []Event{{Kind: EventPeerLeft, ClientID: f.ClientID}}, nil
	case encoding.FrameData:
		return []Event{{Kind: EventMessage, Channel: f.Channel, ClientID: f.ClientID, Payload: f.Payload}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFrame, f.Kind)
	}
}
