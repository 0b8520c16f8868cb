package protocol

import (
	"strings"

	"github.com/zeusync/posesync/internal/core/pose"
)

const (
	// ChannelAvatarID carries "<clientId>|<assetId>" handshakes.
	ChannelAvatarID = "avatarId"
	// ChannelIsVR carries "<clientId>|1" or "<clientId>|0" heartbeats.
	ChannelIsVR = "isVR"

	posePrefix = "avatar-"
)

// SyncChannels lists every channel the pose sync protocol opens.
var SyncChannels = []string{
	ChannelAvatarID,
	ChannelIsVR,
	PoseChannel(pose.Rig),
	PoseChannel(pose.Head),
	PoseChannel(pose.LeftHand),
	PoseChannel(pose.RightHand),
}

// PoseChannel returns the channel carrying samples for part.
func PoseChannel(part pose.Part) string {
	return posePrefix + part.String()
}

// ParsePoseChannel reports which part a pose channel carries.
func ParsePoseChannel(channel string) (pose.Part, bool) {
	name, ok := strings.CutPrefix(channel, posePrefix)
	if !ok {
		return 0, false
	}
	return pose.ParsePart(name)
}

// Reliable reports whether channel needs ordered, lossless delivery. Pose
// channels are superseded by the next sample and tolerate loss.
func Reliable(channel string) bool {
	return !strings.HasPrefix(channel, posePrefix)
}
