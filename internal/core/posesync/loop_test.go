package posesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/events/bus"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/internal/core/world"
)

func TestLoopDrivesHelper(t *testing.T) {
	transport := newFakeTransport("self")
	events := bus.New()
	loaded := make(chan bus.AvatarEvent, 4)
	_, err := events.Subscribe(bus.AvatarLoaded, func(e bus.Event) error {
		loaded <- e.Data().(bus.AvatarEvent)
		return nil
	})
	require.NoError(t, err)

	helper := NewHelper(transport, newFakeLoader(), world.New(), events, nil, log.Nop(), Options{SelfAvatarID: "wolf.glb"})
	ready := NewReadiness()
	loop := NewLoop(helper, transport, ready, Intervals{
		Frame:     time.Millisecond,
		Broadcast: 2 * time.Millisecond,
		Heartbeat: 5 * time.Millisecond,
	}, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	transport.events <- protocol.Event{Kind: protocol.EventConnected, ClientID: "self"}
	for _, ch := range protocol.SyncChannels {
		transport.events <- protocol.Event{Kind: protocol.EventChannelOpen, Channel: ch}
	}
	rig := &movableRig{}
	require.NoError(t, ready.Resolve(rig.local()))
	transport.events <- protocol.Event{Kind: protocol.EventMessage, Channel: protocol.ChannelAvatarID, Payload: []byte("A|fox.glb")}

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-loaded:
			seen[ev.ClientID] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("avatars not loaded, got %v", seen)
		}
	}

	assert.Eventually(t, func() bool {
		return len(transport.on(protocol.PoseChannel(pose.Rig))) > 2 &&
			len(transport.on(protocol.ChannelIsVR)) > 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	// Posting after shutdown must not block.
	loop.Post(func() {})
}

func TestLoopStopsWhenTransportCloses(t *testing.T) {
	transport := newFakeTransport("self")
	helper := NewHelper(transport, newFakeLoader(), world.New(), nil, nil, log.Nop(), Options{})
	loop := NewLoop(helper, transport, nil, Intervals{}, log.Nop())

	close(transport.events)
	assert.ErrorIs(t, loop.Run(context.Background()), ErrTransportClosed)
}
