package posesync

import (
	"context"

	"github.com/zeusync/posesync/internal/core/events/bus"
	"github.com/zeusync/posesync/internal/core/ik"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/skeleton"
	"github.com/zeusync/posesync/internal/core/world"
	"github.com/zeusync/posesync/pkg/encoding"
)

// AssetLoader turns an avatar asset id into a fresh node tree.
type AssetLoader interface {
	Load(ctx context.Context, assetID string) (*scene.Node, error)
}

// Options configures a Helper.
type Options struct {
	// SelfAvatarID is the asset id announced for the local player.
	SelfAvatarID      string
	Codec             encoding.PoseCodec
	PositionThreshold float64
	RotationThreshold float64
}

// Helper runs the pose sync protocol for one room. It is not safe for
// concurrent use: every method must be called from the owning Loop.
type Helper struct {
	transport protocol.Transport
	loader    AssetLoader
	world     *world.Context
	bus       bus.EventBus
	mapper    *skeleton.Mapper
	logger    log.Log
	opts      Options

	selfID string
	buffer *TransformBuffer
	selfVR func() bool
	states map[string]*RemoteAvatar

	generation  uint64
	broadcastOn bool
	heartbeatOn bool

	ctx    context.Context
	cancel context.CancelFunc
	// spawn runs asset loads off the loop; post hands their result back.
	spawn func(func())
	post  func(func())
}

func NewHelper(t protocol.Transport, loader AssetLoader, w *world.Context, b bus.EventBus, mapper *skeleton.Mapper, logger log.Log, opts Options) *Helper {
	if opts.PositionThreshold <= 0 {
		opts.PositionThreshold = DefaultPositionThreshold
	}
	if opts.RotationThreshold <= 0 {
		opts.RotationThreshold = DefaultRotationThreshold
	}
	if mapper == nil {
		mapper = skeleton.NewMapper(skeleton.DefaultRules())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Helper{
		transport: t,
		loader:    loader,
		world:     w,
		bus:       b,
		mapper:    mapper,
		logger:    logger.With(log.String("component", "posesync")),
		opts:      opts,
		states:    make(map[string]*RemoteAvatar),
		ctx:       ctx,
		cancel:    cancel,
		spawn:     func(f func()) { go f() },
		post:      func(f func()) { f() },
	}
}

func (h *Helper) SelfID() string { return h.selfID }

// State returns the avatar state of clientID, nil if unknown.
func (h *Helper) State(clientID string) *RemoteAvatar { return h.states[clientID] }

func (h *Helper) StateCount() int { return len(h.states) }

// Handle dispatches one transport event.
func (h *Helper) Handle(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventConnected:
		h.OnConnected(ev.ClientID)
	case protocol.EventChannelOpen:
		h.OnChannelOpen(ev.Channel)
	case protocol.EventMessage:
		h.OnMessage(ev.Channel, ev.Payload)
	case protocol.EventPeerJoined:
		h.OnPeerJoined(ev.ClientID)
	case protocol.EventPeerLeft:
		h.OnPeerLeft(ev.ClientID)
	case protocol.EventDisconnected:
		h.logger.Warn("Transport disconnected", log.Error(ev.Err))
		h.reset()
	}
}

// OnConnected records the assigned id, announces the local avatar and
// loads it into the state map.
func (h *Helper) OnConnected(clientID string) {
	h.selfID = clientID
	if h.buffer != nil {
		h.buffer.SetSenderID(clientID)
	}
	h.logger.Info("Connected", log.String("client_id", clientID))

	if h.opts.SelfAvatarID == "" {
		return
	}
	h.announce()
	st := h.stateFor(clientID)
	st.Self = true
	st.announced = true
	h.replaceAvatar(st, h.opts.SelfAvatarID)
}

// AttachLocal starts sampling the local rig.
func (h *Helper) AttachLocal(rig LocalRig) {
	h.buffer = NewTransformBuffer(h.selfID, rig.Trackers, h.opts.Codec)
	h.buffer.SetThresholds(h.opts.PositionThreshold, h.opts.RotationThreshold)
	h.selfVR = rig.IsVR
	h.logger.Info("Local rig attached")
}

// OnChannelOpen enables the periodic sends tied to channel.
func (h *Helper) OnChannelOpen(channel string) {
	switch {
	case channel == protocol.ChannelIsVR:
		h.heartbeatOn = true
	case !protocol.Reliable(channel):
		h.broadcastOn = true
	}
}

// OnMessage ingests one inbound channel message.
func (h *Helper) OnMessage(channel string, payload []byte) {
	switch channel {
	case protocol.ChannelAvatarID:
		h.onAvatarID(payload)
		return
	case protocol.ChannelIsVR:
		h.onVRFlag(payload)
		return
	}

	part, ok := protocol.ParsePoseChannel(channel)
	if !ok {
		h.logger.Debug("Ignoring message on unknown channel", log.String("channel", channel))
		return
	}
	msg, err := h.opts.Codec.Decode(payload)
	if err != nil {
		h.logger.Warn("Dropping pose message", log.String("channel", channel), log.Error(err))
		return
	}
	if msg.SenderID == "" || msg.SenderID == h.selfID {
		return
	}
	// States only come from handshakes and peer-joined; a late datagram
	// from a departed peer must not bring one back.
	st, ok := h.states[msg.SenderID]
	if !ok {
		h.logger.Debug("Dropping pose from unknown peer", log.String("client_id", msg.SenderID))
		return
	}
	st.setSample(part, pose.Transform{
		Position: msg.Position,
		Rotation: fromWire(h.opts.Codec.Unit, msg.Rotation),
	})
}

func (h *Helper) onAvatarID(payload []byte) {
	clientID, assetID, err := untag(payload)
	if err != nil {
		h.logger.Warn("Dropping avatar handshake", log.Error(err))
		return
	}
	if clientID == h.selfID {
		return
	}

	st := h.stateFor(clientID)
	if st.announced && st.AssetID == assetID {
		return
	}
	if !st.announced {
		// Nobody keeps a directory of avatars: a newcomer only learns about
		// us because we answer its first handshake.
		st.announced = true
		h.announce()
		h.sendPose(true)
	}
	h.replaceAvatar(st, assetID)
}

func (h *Helper) onVRFlag(payload []byte) {
	clientID, flag, err := untag(payload)
	if err != nil {
		h.logger.Warn("Dropping VR heartbeat", log.Error(err))
		return
	}
	if clientID == h.selfID {
		return
	}
	st, ok := h.states[clientID]
	if !ok {
		h.logger.Debug("Dropping VR heartbeat from unknown peer", log.String("client_id", clientID))
		return
	}
	st.IsVR = flag == "1"
}

func (h *Helper) OnPeerJoined(clientID string) {
	h.stateFor(clientID)
	h.logger.Info("Peer joined", log.String("client_id", clientID))
	h.publish(bus.PeerJoined, bus.PeerEvent{ClientID: clientID})
}

// OnPeerLeft tears down everything held for clientID. Loads still in
// flight for it are discarded when they complete.
func (h *Helper) OnPeerLeft(clientID string) {
	st, ok := h.states[clientID]
	if !ok {
		return
	}
	h.teardown(st)
	delete(h.states, clientID)
	h.logger.Info("Peer left", log.String("client_id", clientID))
	h.publish(bus.PeerLeft, bus.PeerEvent{ClientID: clientID})
}

// Frame solves every loaded avatar from its latest samples.
func (h *Helper) Frame() {
	for _, st := range h.states {
		if st.manager != nil {
			st.manager.UpdatePose(st.inputs())
		}
	}
}

// Broadcast samples the local rig, mirrors it into the self avatar and
// sends the parts that changed enough.
func (h *Helper) Broadcast() {
	if h.buffer == nil {
		return
	}
	h.buffer.Sample()
	if st := h.states[h.selfID]; st != nil && h.selfID != "" {
		for _, part := range pose.Parts {
			st.setSample(part, h.buffer.Transform(part))
		}
	}
	if h.broadcastOn {
		h.sendPose(false)
	}
}

// Heartbeat sends the local VR flag.
func (h *Helper) Heartbeat() {
	if h.selfVR == nil || h.selfID == "" {
		return
	}
	isVR := h.selfVR()
	if st := h.states[h.selfID]; st != nil {
		st.IsVR = isVR
	}
	if !h.heartbeatOn {
		return
	}
	if err := h.transport.Broadcast(protocol.ChannelIsVR, tagged(h.selfID, vrFlag(isVR))); err != nil {
		h.logger.Warn("Failed to send VR heartbeat", log.Error(err))
	}
}

// Close cancels pending loads and releases every avatar.
func (h *Helper) Close() {
	h.cancel()
	h.reset()
}

func (h *Helper) reset() {
	for id, st := range h.states {
		h.teardown(st)
		delete(h.states, id)
	}
	h.broadcastOn, h.heartbeatOn = false, false
}

func (h *Helper) announce() {
	if h.selfID == "" || h.opts.SelfAvatarID == "" {
		return
	}
	if err := h.transport.Broadcast(protocol.ChannelAvatarID, tagged(h.selfID, h.opts.SelfAvatarID)); err != nil {
		h.logger.Warn("Failed to announce avatar", log.Error(err))
	}
}

// sendPose sends the local parts. force skips delta suppression; the rig is
// always sent.
func (h *Helper) sendPose(force bool) {
	if h.buffer == nil || h.selfID == "" {
		return
	}
	for _, part := range pose.Parts {
		if !force && !h.buffer.HasChangedEnoughToResend(part) {
			continue
		}
		if err := h.transport.Broadcast(protocol.PoseChannel(part), h.buffer.Encode(part)); err != nil {
			h.logger.Debug("Pose send failed", log.String("part", part.String()), log.Error(err))
		}
	}
}

func (h *Helper) stateFor(clientID string) *RemoteAvatar {
	st, ok := h.states[clientID]
	if !ok {
		st = &RemoteAvatar{ClientID: clientID}
		h.states[clientID] = st
	}
	return st
}

// replaceAvatar drops the current model of st and loads assetID in the
// background. The generation stamp lets attach discard superseded loads.
func (h *Helper) replaceAvatar(st *RemoteAvatar, assetID string) {
	if st.AssetID == assetID && (st.loading || st.manager != nil) {
		return
	}
	h.teardown(st)

	h.generation++
	st.generation = h.generation
	st.AssetID = assetID
	st.loading = true

	clientID, gen, ctx := st.ClientID, st.generation, h.ctx
	h.logger.Debug("Loading avatar", log.String("client_id", clientID), log.String("asset_id", assetID))
	h.spawn(func() {
		model, err := h.loader.Load(ctx, assetID)
		h.post(func() { h.attach(clientID, gen, assetID, model, err) })
	})
}

func (h *Helper) attach(clientID string, gen uint64, assetID string, model *scene.Node, err error) {
	st, ok := h.states[clientID]
	if !ok || st.generation != gen {
		h.logger.Debug("Discarding stale avatar load", log.String("client_id", clientID), log.String("asset_id", assetID))
		return
	}
	st.loading = false
	if err != nil {
		h.logger.Error("Avatar load failed", log.String("client_id", clientID), log.String("asset_id", assetID), log.Error(err))
		h.publish(bus.AvatarLoadFailed, bus.AvatarEvent{ClientID: clientID, AssetID: assetID, Err: err})
		return
	}

	container := scene.NewNode("avatar:" + clientID)
	container.Add(model)
	sk := h.mapper.Map(container)
	st.container = container
	st.avatar = skeleton.Bind(h.world, container, sk)
	st.manager = ik.NewManager(sk, h.world.Scene())

	h.logger.Info("Avatar loaded",
		log.String("client_id", clientID),
		log.String("asset_id", assetID),
		log.Int("bones", sk.Len()),
		log.Int("chains", st.manager.ChainCount()),
	)
	h.publish(bus.AvatarLoaded, bus.AvatarEvent{
		ClientID: clientID,
		AssetID:  assetID,
		Bones:    sk.Len(),
		Chains:   st.manager.ChainCount(),
	})
}

func (h *Helper) teardown(st *RemoteAvatar) {
	st.loading = false
	if st.avatar == nil {
		return
	}
	st.avatar.Release(h.world)
	st.avatar, st.manager, st.container = nil, nil, nil
	h.publish(bus.AvatarRemoved, bus.AvatarEvent{ClientID: st.ClientID, AssetID: st.AssetID})
}

func (h *Helper) publish(eventType string, data any) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(bus.NewEvent(eventType, "posesync", data)); err != nil {
		h.logger.Warn("Event handler failed", log.String("event", eventType), log.Error(err))
	}
}
