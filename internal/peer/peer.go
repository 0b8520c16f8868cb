// Package peer assembles a headless pose-sync participant: transport,
// asset loader, skeleton rules, event bus and the sync loop.
package peer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/zeusync/posesync/internal/config"
	"github.com/zeusync/posesync/internal/core/assets"
	"github.com/zeusync/posesync/internal/core/events/bus"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/posesync"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/internal/core/protocol/quic"
	"github.com/zeusync/posesync/internal/core/protocol/websocket"
	"github.com/zeusync/posesync/internal/core/skeleton"
	"github.com/zeusync/posesync/internal/core/world"
	"github.com/zeusync/posesync/pkg/encoding"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

var ErrUnknownTransport = errors.New("unknown transport")

type Options struct {
	// RelayURL is ws(s)://host[:port][/path] for websockets and host:port for QUIC.
	RelayURL  string
	Transport string
	Room      string
	AvatarID  string
	VR        bool
	// Insecure accepts self-signed QUIC relay certificates.
	Insecure bool
}

// Peer owns everything one participant needs; Run connects and drives it.
type Peer struct {
	config config.Config
	opts   Options
	logger log.Log

	loader *assets.Loader
	mapper *skeleton.Mapper
	world  *world.Context
	bus    bus.EventBus
	rig    *ScriptedRig
	stats  Stats
}

func New(cfg config.Config, opts Options, logger log.Log) (*Peer, error) {
	if opts.Transport == "" {
		opts.Transport = TransportWebSocket
	}
	if opts.Transport != TransportWebSocket && opts.Transport != TransportQUIC {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.Transport)
	}

	rules := skeleton.DefaultRules()
	if path := cfg.Skeleton.RulesFile; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bone rules: %w", err)
		}
		rules, err = skeleton.LoadRules(f, rules)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}

	p := &Peer{
		config: cfg,
		opts:   opts,
		logger: logger.With(log.String("component", "peer"), log.String("room", opts.Room)),
		loader: assets.NewLoader(assets.Config{BaseURL: cfg.Assets.BaseURL, Timeout: cfg.Assets.Timeout}, logger),
		mapper: skeleton.NewMapper(rules),
		world:  world.New(),
		bus:    bus.New(),
		rig:    NewScriptedRig(opts.VR),
	}
	p.watch()
	return p, nil
}

// Bus exposes lifecycle events.
func (p *Peer) Bus() bus.EventBus { return p.bus }

// World is owned by the sync loop while Run is active.
func (p *Peer) World() *world.Context { return p.world }

func (p *Peer) Rig() *ScriptedRig { return p.rig }

// Run connects to the relay and syncs until ctx ends or the relay drops us.
func (p *Peer) Run(ctx context.Context) error {
	t, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer t.Close()

	helper := posesync.NewHelper(t, p.loader, p.world, p.bus, p.mapper, p.logger, posesync.Options{
		SelfAvatarID:      p.opts.AvatarID,
		Codec:             encoding.PoseCodec{Unit: p.config.Sync.Unit()},
		PositionThreshold: p.config.Sync.PositionThreshold,
		RotationThreshold: p.config.Sync.RotationThreshold,
	})
	ready := posesync.NewReadiness()
	loop := posesync.NewLoop(helper, t, ready, posesync.Intervals{
		Frame:     p.config.Sync.FrameInterval,
		Broadcast: p.config.Sync.BroadcastInterval,
		Heartbeat: p.config.Sync.HeartbeatInterval,
	}, p.logger)

	if err = ready.Resolve(p.rig.Local()); err != nil {
		return err
	}
	return loop.Run(ctx)
}

func (p *Peer) dial(ctx context.Context) (protocol.Transport, error) {
	switch p.opts.Transport {
	case TransportQUIC:
		addr := strings.TrimPrefix(p.opts.RelayURL, "quic://")
		return quic.Dial(ctx, addr, p.opts.Room, quic.ClientTLS(p.opts.Insecure), quic.DefaultConfig(), p.logger)
	default:
		cfg := websocket.DefaultConfig()
		cfg.WriteTimeout = p.config.Relay.WriteTimeout
		return websocket.Dial(ctx, p.opts.RelayURL, p.opts.Room, cfg, p.logger)
	}
}

// Stats counts lifecycle events seen since New.
type Stats struct {
	PeersJoined    int64
	PeersLeft      int64
	AvatarsLoaded  int64
	AvatarsFailed  int64
	AvatarsRemoved int64
}

func (p *Peer) Stats() Stats {
	return Stats{
		PeersJoined:    atomic.LoadInt64(&p.stats.PeersJoined),
		PeersLeft:      atomic.LoadInt64(&p.stats.PeersLeft),
		AvatarsLoaded:  atomic.LoadInt64(&p.stats.AvatarsLoaded),
		AvatarsFailed:  atomic.LoadInt64(&p.stats.AvatarsFailed),
		AvatarsRemoved: atomic.LoadInt64(&p.stats.AvatarsRemoved),
	}
}

func (p *Peer) watch() {
	counters := map[string]*int64{
		bus.PeerJoined:       &p.stats.PeersJoined,
		bus.PeerLeft:         &p.stats.PeersLeft,
		bus.AvatarLoaded:     &p.stats.AvatarsLoaded,
		bus.AvatarLoadFailed: &p.stats.AvatarsFailed,
		bus.AvatarRemoved:    &p.stats.AvatarsRemoved,
	}
	for typ, counter := range counters {
		counter := counter
		_, _ = p.bus.Subscribe(typ, func(e bus.Event) error {
			atomic.AddInt64(counter, 1)
			p.logger.Debug("Lifecycle event", log.String("event", e.Type()))
			return nil
		})
	}
}
