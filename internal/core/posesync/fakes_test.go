package posesync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zeusync/posesync/internal/core/events/bus"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/skeleton/skeletontest"
	"github.com/zeusync/posesync/internal/core/world"
	"github.com/zeusync/posesync/pkg/encoding"
)

var errBrokenAsset = errors.New("broken asset")

type sentMessage struct {
	channel string
	payload []byte
}

type fakeTransport struct {
	mu     sync.Mutex
	id     string
	sent   []sentMessage
	events chan protocol.Event
	net    *fakeNetwork
}

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{id: id, events: make(chan protocol.Event, 16)}
}

func (f *fakeTransport) ClientID() string { return f.id }

func (f *fakeTransport) Broadcast(channel string, payload []byte) error {
	cp := append([]byte(nil), payload...)
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{channel: channel, payload: cp})
	f.mu.Unlock()
	if f.net != nil {
		f.net.route(f.id, channel, cp)
	}
	return nil
}

func (f *fakeTransport) Events() <-chan protocol.Event { return f.events }
func (f *fakeTransport) Close() error                  { return nil }

// on returns the payloads sent on channel.
func (f *fakeTransport) on(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.channel == channel {
			out = append(out, string(m.payload))
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

// fakeNetwork queues broadcasts and delivers them on flush, the way a
// relay would between loop iterations.
type fakeNetwork struct {
	peers map[string]*Helper
	order []string
	queue []delivery
}

type delivery struct {
	to string
	ev protocol.Event
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{peers: make(map[string]*Helper)}
}

func (n *fakeNetwork) join(id string, h *Helper, t *fakeTransport) {
	t.net = n
	n.peers[id] = h
	n.order = append(n.order, id)
}

func (n *fakeNetwork) route(from, channel string, payload []byte) {
	for _, id := range n.order {
		if id == from {
			continue
		}
		n.queue = append(n.queue, delivery{to: id, ev: protocol.Event{
			Kind:     protocol.EventMessage,
			Channel:  channel,
			ClientID: from,
			Payload:  payload,
		}})
	}
}

func (n *fakeNetwork) flush() {
	for len(n.queue) > 0 {
		d := n.queue[0]
		n.queue = n.queue[1:]
		n.peers[d.to].Handle(d.ev)
	}
}

type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{calls: make(map[string]int)}
}

func (l *fakeLoader) Load(_ context.Context, assetID string) (*scene.Node, error) {
	l.mu.Lock()
	l.calls[assetID]++
	l.mu.Unlock()
	if assetID == "broken.glb" {
		return nil, errBrokenAsset
	}
	return skeletontest.Biped(skeletontest.Options{}), nil
}

func (l *fakeLoader) count(assetID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[assetID]
}

type fixture struct {
	helper    *Helper
	transport *fakeTransport
	loader    *fakeLoader
	world     *world.Context
	bus       bus.EventBus
}

func newFixture(t *testing.T, selfAsset string) *fixture {
	t.Helper()
	f := &fixture{
		transport: newFakeTransport(""),
		loader:    newFakeLoader(),
		world:     world.New(),
		bus:       bus.New(),
	}
	f.helper = NewHelper(f.transport, f.loader, f.world, f.bus, nil, log.Nop(), Options{SelfAvatarID: selfAsset})
	f.helper.spawn = func(fn func()) { fn() }
	t.Cleanup(f.helper.Close)
	return f
}

func (f *fixture) connect(id string) {
	f.transport.id = id
	f.helper.Handle(protocol.Event{Kind: protocol.EventConnected, ClientID: id})
}

func (f *fixture) receive(channel string, payload []byte) {
	f.helper.Handle(protocol.Event{Kind: protocol.EventMessage, Channel: channel, Payload: payload})
}

// events records the payloads of every event of the given types.
func (f *fixture) events(t *testing.T, types ...string) *[]bus.Event {
	t.Helper()
	var got []bus.Event
	for _, typ := range types {
		_, err := f.bus.Subscribe(typ, func(e bus.Event) error {
			got = append(got, e)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return &got
}

// movableRig is a local rig whose transforms tests can change.
type movableRig struct {
	parts [pose.PartCount]pose.Transform
	vr    bool
}

func (r *movableRig) local() LocalRig {
	var rig LocalRig
	for _, part := range pose.Parts {
		part := part
		rig.Trackers[part] = pose.TrackerFunc(func() pose.Transform { return r.parts[part] })
	}
	rig.IsVR = func() bool { return r.vr }
	return rig
}

func encodePose(sender string, t pose.Transform) []byte {
	return encoding.PoseCodec{}.Encode(nil, t.Position, t.Rotation, sender)
}
