package quic

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/internal/relay"
)

func startRelay(t *testing.T, config relay.Config) (*relay.Hub, string) {
	t.Helper()
	tlsConfig, err := GenerateSelfSignedTLS()
	require.NoError(t, err)

	hub := relay.NewHub(config, log.Nop())
	cfg := DefaultConfig()
	listener, err := quic.ListenAddr("127.0.0.1:0", tlsConfig, cfg.quicConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(cfg, tlsConfig, hub, log.Nop()).Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = listener.Close()
	})
	return hub, listener.Addr().String()
}

func dial(t *testing.T, addr, room string) *Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, addr, room, ClientTLS(true), DefaultConfig(), log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func next(t *testing.T, tr *Transport) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-tr.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return protocol.Event{}
	}
}

func connected(t *testing.T, tr *Transport) string {
	t.Helper()
	ev := next(t, tr)
	require.Equal(t, protocol.EventConnected, ev.Kind)
	for range protocol.SyncChannels {
		require.Equal(t, protocol.EventChannelOpen, next(t, tr).Kind)
	}
	return ev.ClientID
}

func TestLengthPrefixedFraming(t *testing.T) {
	var buf bytes.Buffer
	data, err := appendLengthPrefixed(nil, []byte("lobby"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 5, 'l', 'o', 'b', 'b', 'y'}, data)
	buf.Write(data)
	buf.Write([]byte{0, 0})

	got, err := readLengthPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, "lobby", string(got))
	got, err = readLengthPrefixed(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = readLengthPrefixed(bytes.NewReader([]byte{0, 9, 1}))
	assert.Error(t, err)

	_, err = appendLengthPrefixed(nil, make([]byte, maxFrameSize+1))
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestRelayOverQUIC(t *testing.T) {
	hub, addr := startRelay(t, relay.DefaultConfig())

	a := dial(t, addr, "lobby")
	connected(t, a)
	b := dial(t, addr, "lobby")
	bID := connected(t, b)

	ev := next(t, a)
	require.Equal(t, protocol.EventPeerJoined, ev.Kind)
	assert.Equal(t, bID, ev.ClientID)

	// Reliable channel over the stream.
	require.NoError(t, b.Broadcast(protocol.ChannelAvatarID, []byte(bID+"|bot.glb")))
	ev = next(t, a)
	assert.Equal(t, protocol.ChannelAvatarID, ev.Channel)
	assert.Equal(t, bID, ev.ClientID)

	// Pose channel over datagrams; resend until one arrives.
	head := protocol.PoseChannel(pose.Head)
	got := make(chan protocol.Event, 1)
	go func() {
		for ev := range a.Events() {
			if ev.Kind == protocol.EventMessage && ev.Channel == head {
				got <- ev
				return
			}
		}
	}()
	assert.Eventually(t, func() bool {
		_ = b.Broadcast(head, []byte{1, 2, 3})
		select {
		case ev := <-got:
			return ev.ClientID == bID && bytes.Equal(ev.Payload, []byte{1, 2, 3})
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	datagrams, _ := b.conn.Stats()
	assert.NotZero(t, datagrams)
	assert.Equal(t, 2, hub.PeerCount())
}

func TestQUICFullRoom(t *testing.T) {
	_, addr := startRelay(t, relay.Config{MaxPeersPerRoom: 1})

	a := dial(t, addr, "lobby")
	connected(t, a)

	b := dial(t, addr, "lobby")
	ev := next(t, b)
	assert.Equal(t, protocol.EventDisconnected, ev.Kind)
	assert.Error(t, ev.Err)
}
