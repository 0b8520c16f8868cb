package posesync

import (
	"github.com/zeusync/posesync/internal/core/ik"
	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/skeleton"
)

// RemoteAvatar is everything known about one peer's avatar, including the
// local player's own avatar.
type RemoteAvatar struct {
	ClientID string
	AssetID  string
	IsVR     bool
	Self     bool

	samples [pose.PartCount]*pose.Transform

	// announced is set once the peer's first handshake was answered.
	announced  bool
	generation uint64
	loading    bool

	container *scene.Node
	avatar    *skeleton.AvatarEntity
	manager   *ik.Manager
}

// Sample returns the latest transform received for part.
func (r *RemoteAvatar) Sample(part pose.Part) (pose.Transform, bool) {
	if s := r.samples[part]; s != nil {
		return *s, true
	}
	return pose.Transform{}, false
}

func (r *RemoteAvatar) setSample(part pose.Part, t pose.Transform) {
	if r.samples[part] == nil {
		r.samples[part] = new(pose.Transform)
	}
	*r.samples[part] = t
}

func (r *RemoteAvatar) Loaded() bool                   { return r.manager != nil }
func (r *RemoteAvatar) Loading() bool                  { return r.loading }
func (r *RemoteAvatar) Manager() *ik.Manager           { return r.manager }
func (r *RemoteAvatar) Avatar() *skeleton.AvatarEntity { return r.avatar }

func (r *RemoteAvatar) inputs() ik.TrackedInputs {
	return ik.TrackedInputs{
		Rig:       r.samples[pose.Rig],
		Head:      r.samples[pose.Head],
		LeftHand:  r.samples[pose.LeftHand],
		RightHand: r.samples[pose.RightHand],
		IsVR:      r.IsVR,
		IsSelf:    r.Self,
	}
}
