package peer

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/posesync"
)

const (
	headHeight = 1.6
	handHeight = 1.1
	handSpread = 0.3
	handReach  = 0.2
)

// ScriptedRig stands in for a tracked player: the head sways and looks
// around, and in VR the hands bob in front of the body.
type ScriptedRig struct {
	VR    bool
	start time.Time
	now   func() time.Time
}

func NewScriptedRig(vr bool) *ScriptedRig {
	return &ScriptedRig{VR: vr, start: time.Now(), now: time.Now}
}

// Local exposes the rig to the sync loop.
func (r *ScriptedRig) Local() posesync.LocalRig {
	var trackers [pose.PartCount]pose.Tracker
	for _, part := range pose.Parts {
		part := part
		trackers[part] = pose.TrackerFunc(func() pose.Transform { return r.Sample(part) })
	}
	return posesync.LocalRig{
		Trackers: trackers,
		IsVR:     func() bool { return r.VR },
	}
}

// Sample returns the scripted transform of part at the current time.
func (r *ScriptedRig) Sample(part pose.Part) pose.Transform {
	t := r.now().Sub(r.start).Seconds()
	switch part {
	case pose.Head:
		return pose.Transform{
			Position: mgl64.Vec3{0, headHeight + 0.01*math.Sin(2*t), 0},
			Rotation: mgl64.Vec3{0.05 * math.Sin(t), 0.3 * math.Sin(0.5*t), 0},
		}
	case pose.LeftHand, pose.RightHand:
		if !r.VR {
			return pose.Transform{}
		}
		side, phase := -1.0, 0.0
		if part == pose.RightHand {
			side, phase = 1, math.Pi
		}
		return pose.Transform{
			Position: mgl64.Vec3{side * handSpread, handHeight + 0.05*math.Sin(t+phase), -handReach},
		}
	default:
		return pose.Transform{}
	}
}
