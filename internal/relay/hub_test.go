package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/pkg/encoding"
)

type recordingPeer struct {
	id string

	mu       sync.Mutex
	frames   []encoding.Frame
	reliable []bool
	fail     error
}

func (p *recordingPeer) ID() string { return p.id }

func (p *recordingPeer) Send(frame []byte, reliable bool) error {
	if p.fail != nil {
		return p.fail
	}
	f, err := encoding.DecodeFrame(append([]byte(nil), frame...))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.frames = append(p.frames, f)
	p.reliable = append(p.reliable, reliable)
	p.mu.Unlock()
	return nil
}

func (p *recordingPeer) kinds() []encoding.FrameKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]encoding.FrameKind, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.Kind
	}
	return out
}

func (p *recordingPeer) last() encoding.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames[len(p.frames)-1]
}

func TestJoinWelcomesAndAnnounces(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	a := &recordingPeer{id: "a"}
	b := &recordingPeer{id: "b"}

	require.NoError(t, hub.Join("lobby", a))
	require.NoError(t, hub.Join("lobby", b))

	assert.Equal(t, []encoding.FrameKind{encoding.FrameWelcome, encoding.FramePeerJoined}, a.kinds())
	assert.Equal(t, "b", a.last().ClientID)
	assert.Equal(t, []encoding.FrameKind{encoding.FrameWelcome}, b.kinds())
	assert.Equal(t, "b", b.last().ClientID)

	assert.Equal(t, []string{"a", "b"}, hub.Members("lobby"))
	assert.ErrorIs(t, hub.Join("lobby", &recordingPeer{id: "a"}), ErrDuplicatePeer)
}

func TestForwardStampsSenderAndSkipsIt(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	a := &recordingPeer{id: "a"}
	b := &recordingPeer{id: "b"}
	c := &recordingPeer{id: "c"}
	other := &recordingPeer{id: "x"}
	for _, p := range []*recordingPeer{a, b, c} {
		require.NoError(t, hub.Join("lobby", p))
	}
	require.NoError(t, hub.Join("elsewhere", other))

	require.NoError(t, hub.Forward("lobby", "a", "avatar-HEAD", []byte{1, 2, 3}))

	for _, p := range []*recordingPeer{b, c} {
		f := p.last()
		assert.Equal(t, encoding.FrameData, f.Kind)
		assert.Equal(t, "a", f.ClientID)
		assert.Equal(t, "avatar-HEAD", f.Channel)
		assert.Equal(t, []byte{1, 2, 3}, f.Payload)
		p.mu.Lock()
		assert.False(t, p.reliable[len(p.reliable)-1])
		p.mu.Unlock()
	}
	assert.NotEqual(t, encoding.FrameData, a.last().Kind)
	assert.Equal(t, []encoding.FrameKind{encoding.FrameWelcome}, other.kinds())

	require.NoError(t, hub.Forward("lobby", "b", "avatarId", []byte("b|bot.glb")))
	a.mu.Lock()
	assert.True(t, a.reliable[len(a.reliable)-1])
	a.mu.Unlock()

	assert.ErrorIs(t, hub.Forward("lobby", "x", "avatarId", nil), ErrUnknownPeer)
	assert.ErrorIs(t, hub.Forward("nowhere", "a", "avatarId", nil), ErrUnknownPeer)
}

func TestLeaveNotifiesAndDropsEmptyRooms(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	a := &recordingPeer{id: "a"}
	b := &recordingPeer{id: "b"}
	require.NoError(t, hub.Join("lobby", a))
	require.NoError(t, hub.Join("lobby", b))

	hub.Leave("lobby", "b")
	assert.Equal(t, encoding.FramePeerLeft, a.last().Kind)
	assert.Equal(t, "b", a.last().ClientID)
	assert.Equal(t, 1, hub.PeerCount())

	hub.Leave("lobby", "b")
	hub.Leave("lobby", "a")
	assert.Zero(t, hub.RoomCount())
	assert.Nil(t, hub.Members("lobby"))
}

func TestRoomCapacity(t *testing.T) {
	hub := NewHub(Config{MaxPeersPerRoom: 2}, log.Nop())
	require.NoError(t, hub.Join("lobby", &recordingPeer{id: "a"}))
	require.NoError(t, hub.Join("lobby", &recordingPeer{id: "b"}))

	late := &recordingPeer{id: "c"}
	assert.ErrorIs(t, hub.Join("lobby", late), ErrRoomFull)
	assert.Empty(t, late.kinds())

	require.NoError(t, hub.Join("other", late))
	assert.Equal(t, 3, hub.PeerCount())
}

func TestFailedWelcomeLeavesNoRoom(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	broken := errors.New("pipe closed")
	assert.ErrorIs(t, hub.Join("lobby", &recordingPeer{id: "a", fail: broken}), broken)
	assert.Zero(t, hub.RoomCount())
}

func TestNormalizeRoom(t *testing.T) {
	name, err := NormalizeRoom("  ")
	require.NoError(t, err)
	assert.Equal(t, "default", name)

	name, err = NormalizeRoom(" lobby ")
	require.NoError(t, err)
	assert.Equal(t, "lobby", name)

	_, err = NormalizeRoom(string(make([]byte, 65)))
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestNewClientIDsAreUnique(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := hub.NewClientID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestForwardRateLimitsPoseChannels(t *testing.T) {
	hub := NewHub(Config{MaxPeersPerRoom: 4, MaxFrameRate: 2}, log.Nop())
	clock := time.Unix(0, 0)
	hub.limiter.now = func() time.Time { return clock }

	a := &recordingPeer{id: "a"}
	b := &recordingPeer{id: "b"}
	require.NoError(t, hub.Join("lobby", a))
	require.NoError(t, hub.Join("lobby", b))

	require.NoError(t, hub.Forward("lobby", "a", "avatar-HEAD", []byte{1}))
	require.NoError(t, hub.Forward("lobby", "a", "avatar-HEAD", []byte{2}))
	assert.ErrorIs(t, hub.Forward("lobby", "a", "avatar-HEAD", []byte{3}), ErrRateLimited)

	// Reliable channels are never limited.
	require.NoError(t, hub.Forward("lobby", "a", "avatarId", []byte("a|bot.glb")))
	// Other peers have their own budget.
	require.NoError(t, hub.Forward("lobby", "b", "avatar-RIG", []byte{9}))

	clock = clock.Add(time.Second)
	require.NoError(t, hub.Forward("lobby", "a", "avatar-HEAD", []byte{4}))
	assert.Equal(t, []byte{4}, b.last().Payload)

	hub.Leave("lobby", "a")
	hub.limiter.mu.Lock()
	_, tracked := hub.limiter.clients["a"]
	hub.limiter.mu.Unlock()
	assert.False(t, tracked)
}

func TestForwardReusesBuffersSafely(t *testing.T) {
	hub := NewHub(DefaultConfig(), log.Nop())
	a := &recordingPeer{id: "a"}
	b := &recordingPeer{id: "b"}
	require.NoError(t, hub.Join("lobby", a))
	require.NoError(t, hub.Join("lobby", b))

	for i := byte(0); i < 10; i++ {
		require.NoError(t, hub.Forward("lobby", "a", "avatarId", []byte{'a', '|', '0' + i}))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.frames[len(b.frames)-10:]
	for i, f := range data {
		assert.Equal(t, []byte{'a', '|', '0' + byte(i)}, f.Payload)
	}
}
