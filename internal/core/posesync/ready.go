package posesync

import (
	"context"
	"sync"

	"github.com/zeusync/posesync/internal/core/pose"
)

// LocalRig is the local player's tracked scene objects.
type LocalRig struct {
	Trackers [pose.PartCount]pose.Tracker
	// IsVR reports whether the player is currently in an immersive session.
	IsVR func() bool
}

// Readiness is resolved once by session setup when the local rig exists.
// The sync loop starts sampling and broadcasting only after that.
type Readiness struct {
	once sync.Once
	done chan struct{}
	rig  LocalRig
}

func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Resolve publishes rig. Only the first call has an effect.
func (r *Readiness) Resolve(rig LocalRig) error {
	err := ErrAlreadyResolved
	r.once.Do(func() {
		r.rig = rig
		close(r.done)
		err = nil
	})
	return err
}

func (r *Readiness) Done() <-chan struct{} { return r.done }

// Rig returns the resolved rig. It must only be called after Done is closed.
func (r *Readiness) Rig() LocalRig { return r.rig }

// Wait blocks until Resolve is called or ctx ends.
func (r *Readiness) Wait(ctx context.Context) (LocalRig, error) {
	select {
	case <-r.done:
		return r.rig, nil
	case <-ctx.Done():
		return LocalRig{}, ctx.Err()
	}
}
