package posesync

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/pkg/encoding"
)

const (
	DefaultPositionThreshold = 0.01
	DefaultRotationThreshold = 0.01
)

// TransformBuffer samples the local player's tracked parts and decides
// which of them are worth resending.
type TransformBuffer struct {
	senderID string
	codec    encoding.PoseCodec
	trackers [pose.PartCount]pose.Tracker

	current [pose.PartCount]pose.Transform
	sent    [pose.PartCount]pose.Transform
	encoded [pose.PartCount][]byte

	positionThreshold float64
	rotationThreshold float64
}

// NewTransformBuffer samples every tracker once; those values count as
// already sent. A nil tracker reports the zero transform.
func NewTransformBuffer(senderID string, trackers [pose.PartCount]pose.Tracker, codec encoding.PoseCodec) *TransformBuffer {
	b := &TransformBuffer{
		senderID:          senderID,
		codec:             codec,
		trackers:          trackers,
		positionThreshold: DefaultPositionThreshold,
		rotationThreshold: DefaultRotationThreshold,
	}
	b.Sample()
	b.sent = b.current
	return b
}

func (b *TransformBuffer) SetThresholds(position, rotation float64) {
	b.positionThreshold = position
	b.rotationThreshold = rotation
}

func (b *TransformBuffer) SetSenderID(id string) { b.senderID = id }

// Sample reads every tracker.
func (b *TransformBuffer) Sample() {
	for _, part := range pose.Parts {
		if t := b.trackers[part]; t != nil {
			b.current[part] = t.Transform()
		}
	}
}

// Transform is the latest sampled transform of part.
func (b *TransformBuffer) Transform(part pose.Part) pose.Transform {
	return b.current[part]
}

// HasChangedEnoughToResend compares the latest sample with the last sent
// one. The rig always reports true: one-shot inputs such as a snap turn
// must survive a lost datagram.
func (b *TransformBuffer) HasChangedEnoughToResend(part pose.Part) bool {
	if part == pose.Rig {
		return true
	}
	cur, last := b.current[part], b.sent[part]
	if cur.Position.Sub(last.Position).Len() > b.positionThreshold {
		return true
	}
	for i := 0; i < 3; i++ {
		if math.Abs(scene.WrapAngle(cur.Rotation[i]-last.Rotation[i])) > b.rotationThreshold {
			return true
		}
	}
	return false
}

// Encode quantizes the latest sample of part and records it as sent. The
// returned slice is reused by the next Encode of the same part.
func (b *TransformBuffer) Encode(part pose.Part) []byte {
	t := b.current[part]
	b.sent[part] = t
	b.encoded[part] = b.codec.Encode(b.encoded[part], t.Position, toWire(b.codec.Unit, t.Rotation), b.senderID)
	return b.encoded[part]
}

func toWire(unit encoding.AngleUnit, rot mgl64.Vec3) mgl64.Vec3 {
	if unit == encoding.Degrees {
		return mgl64.Vec3{mgl64.RadToDeg(rot[0]), mgl64.RadToDeg(rot[1]), mgl64.RadToDeg(rot[2])}
	}
	return rot
}

func fromWire(unit encoding.AngleUnit, rot mgl64.Vec3) mgl64.Vec3 {
	if unit == encoding.Degrees {
		return mgl64.Vec3{mgl64.DegToRad(rot[0]), mgl64.DegToRad(rot[1]), mgl64.DegToRad(rot[2])}
	}
	return rot
}
