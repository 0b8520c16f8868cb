package encoding

import "fmt"

// FrameKind tags relay frames.
type FrameKind uint8

const (
	// FrameWelcome carries the id the relay assigned to the receiver.
	FrameWelcome FrameKind = iota + 1
	FramePeerJoined
	FramePeerLeft
	// FrameData carries a channel payload; the relay fills in the sender id.
	FrameData
)

func (k FrameKind) String() string {
	switch k {
	case FrameWelcome:
		return "welcome"
	case FramePeerJoined:
		return "peer-joined"
	case FramePeerLeft:
		return "peer-left"
	case FrameData:
		return "data"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// Frame is the unit exchanged between peers and the relay:
//
//	kind(1) | channelLen(1) | channel | idLen(1) | id | payload
type Frame struct {
	Kind     FrameKind
	Channel  string
	ClientID string
	Payload  []byte
}

var _ Serializable[Frame] = (*Frame)(nil)

func (f *Frame) Serialize() ([]byte, error) {
	return AppendFrame(make([]byte, 0, f.Size()), *f)
}

// Deserialize decodes data into f. Payload aliases data.
func (f *Frame) Deserialize(data []byte) error {
	if len(data) < 3 {
		return ErrShortFrame
	}
	kind := FrameKind(data[0])
	if kind < FrameWelcome || kind > FrameData {
		return fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}
	rest := data[1:]

	channel, rest, err := readField(rest)
	if err != nil {
		return err
	}
	id, rest, err := readField(rest)
	if err != nil {
		return err
	}

	*f = Frame{Kind: kind, Channel: channel, ClientID: id, Payload: rest}
	return nil
}

// Size is the encoded length of f.
func (f *Frame) Size() int {
	return 3 + len(f.Channel) + len(f.ClientID) + len(f.Payload)
}

// AppendFrame encodes f onto dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	if len(f.Channel) > 255 || len(f.ClientID) > 255 {
		return dst, ErrFieldTooLong
	}
	dst = append(dst, byte(f.Kind), byte(len(f.Channel)))
	dst = append(dst, f.Channel...)
	dst = append(dst, byte(len(f.ClientID)))
	dst = append(dst, f.ClientID...)
	return append(dst, f.Payload...), nil
}

// DecodeFrame is a convenience wrapper around Frame.Deserialize.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := f.Deserialize(data)
	return f, err
}

func readField(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, ErrShortFrame
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, ErrShortFrame
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}
