package encoding

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// PositionBytes holds an integer and a hundredths byte per axis.
	PositionBytes = 6
	// RotationBytes holds one byte per axis spanning a full turn.
	RotationBytes = 3
	// PoseHeaderSize precedes the sender id.
	PoseHeaderSize = PositionBytes + RotationBytes

	positionMin = -128.0
	positionMax = 127.99
)

// AngleUnit selects how rotation components are interpreted on both ends.
type AngleUnit uint8

const (
	Radians AngleUnit = iota
	Degrees
)

func ParseAngleUnit(s string) (AngleUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rad", "radians":
		return Radians, nil
	case "deg", "degrees":
		return Degrees, nil
	default:
		return Radians, ErrInvalidAngleUnit
	}
}

func (u AngleUnit) String() string {
	if u == Degrees {
		return "degrees"
	}
	return "radians"
}

func (u AngleUnit) halfTurn() float64 {
	if u == Degrees {
		return 180
	}
	return math.Pi
}

// PoseCodec quantizes a position and an Euler rotation into a compact
// payload followed by the sender id bytes.
type PoseCodec struct {
	Unit AngleUnit
}

// Encode writes the payload into dst[:0], growing it when needed.
func (c PoseCodec) Encode(dst []byte, position, rotation mgl64.Vec3, senderID string) []byte {
	dst = dst[:0]
	for i := 0; i < 3; i++ {
		whole, hundredths := quantizePosition(position[i])
		dst = append(dst, whole, hundredths)
	}
	for i := 0; i < 3; i++ {
		dst = append(dst, c.quantizeAngle(rotation[i]))
	}
	return append(dst, senderID...)
}

// Decode is the inverse of Encode. Position comes back within 0.01 and each
// rotation axis within half a quantization step.
func (c PoseCodec) Decode(data []byte) (PoseMessage, error) {
	if len(data) < PoseHeaderSize {
		return PoseMessage{}, ErrShortPayload
	}
	msg := PoseMessage{Unit: c.Unit}
	for i := 0; i < 3; i++ {
		msg.Position[i] = float64(data[2*i]) + float64(data[2*i+1])/100 + positionMin
	}
	for i := 0; i < 3; i++ {
		msg.Rotation[i] = c.dequantizeAngle(data[PositionBytes+i])
	}
	msg.SenderID = string(data[PoseHeaderSize:])
	return msg, nil
}

// SenderID extracts the trailing id without decoding the transform.
func SenderID(data []byte) (string, error) {
	if len(data) < PoseHeaderSize {
		return "", ErrShortPayload
	}
	return string(data[PoseHeaderSize:]), nil
}

func quantizePosition(v float64) (byte, byte) {
	shifted := mgl64.Clamp(v, positionMin, positionMax) - positionMin
	whole := math.Floor(shifted)
	hundredths := math.Floor((shifted-whole)*100 + 1e-6)
	if hundredths > 99 {
		hundredths = 99
	}
	return byte(whole), byte(hundredths)
}

func (c PoseCodec) quantizeAngle(a float64) byte {
	half := c.Unit.halfTurn()
	a = wrap(a, half)
	q := math.Round((a + half) * 255 / (2 * half))
	return byte(mgl64.Clamp(q, 0, 255))
}

func (c PoseCodec) dequantizeAngle(b byte) float64 {
	half := c.Unit.halfTurn()
	return float64(b)*(2*half)/255 - half
}

func wrap(a, half float64) float64 {
	a = math.Mod(a, 2*half)
	if a < -half {
		a += 2 * half
	} else if a > half {
		a -= 2 * half
	}
	return a
}

// PoseMessage is the decoded form of one pose payload.
type PoseMessage struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	SenderID string
	Unit     AngleUnit
}

var _ Serializable[PoseMessage] = (*PoseMessage)(nil)

func (m *PoseMessage) Serialize() ([]byte, error) {
	codec := PoseCodec{Unit: m.Unit}
	return codec.Encode(make([]byte, 0, PoseHeaderSize+len(m.SenderID)), m.Position, m.Rotation, m.SenderID), nil
}

func (m *PoseMessage) Deserialize(data []byte) error {
	decoded, err := PoseCodec{Unit: m.Unit}.Decode(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
