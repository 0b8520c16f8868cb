package relay

import "errors"

var (
	ErrRoomFull      = errors.New("room is full")
	ErrDuplicatePeer = errors.New("peer already in room")
	ErrUnknownPeer   = errors.New("peer not in room")
	ErrInvalidRoom   = errors.New("invalid room name")
	ErrRateLimited   = errors.New("peer exceeded frame rate")
)
