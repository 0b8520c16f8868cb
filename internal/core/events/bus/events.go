package bus

// Peer and avatar lifecycle event types published by the pose sync helper.
const (
	PeerJoined       = "peer.joined"
	PeerLeft         = "peer.left"
	AvatarLoaded     = "avatar.loaded"
	AvatarLoadFailed = "avatar.load_failed"
	AvatarRemoved    = "avatar.removed"
)

// PeerEvent is the payload of PeerJoined and PeerLeft.
type PeerEvent struct {
	ClientID string
}

// AvatarEvent is the payload of the avatar.* events.
type AvatarEvent struct {
	ClientID string
	AssetID  string
	// Bones and Chains describe a loaded avatar.
	Bones  int
	Chains int
	Err    error
}
