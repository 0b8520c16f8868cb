// Package server runs the relay front-ends against one shared hub.
package server

import (
	"context"
	"crypto/tls"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/posesync/internal/config"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/protocol/quic"
	"github.com/zeusync/posesync/internal/core/protocol/websocket"
	"github.com/zeusync/posesync/internal/relay"
)

// Config selects the front-ends. A zero address disables that front-end.
type Config struct {
	WebSocket websocket.Config
	QUIC      quic.Config
	TLS       *tls.Config
}

// FromConfig maps the file configuration onto front-end settings. QUIC
// without a certificate pair uses a generated self-signed one.
func FromConfig(cfg config.Config) (Config, error) {
	ws := websocket.DefaultConfig()
	ws.Addr = cfg.Relay.WebSocketAddr
	ws.WriteTimeout = cfg.Relay.WriteTimeout

	q := quic.DefaultConfig()
	q.Addr = cfg.Relay.QUICAddr
	q.WriteTimeout = cfg.Relay.WriteTimeout

	out := Config{WebSocket: ws, QUIC: q}
	if q.Addr == "" {
		return out, nil
	}

	var err error
	if cfg.Relay.CertFile != "" {
		out.TLS, err = loadTLS(cfg.Relay.CertFile, cfg.Relay.KeyFile)
	} else {
		out.TLS, err = quic.GenerateSelfSignedTLS()
	}
	return out, err
}

func loadTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{quic.ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Server owns the hub and every enabled front-end.
type Server struct {
	config  Config
	hub     *relay.Hub
	logger  log.Log
	running int32

	ws   *websocket.Server
	quic *quic.Server
}

func NewServer(cfg Config, hub *relay.Hub, logger log.Log) *Server {
	s := &Server{
		config: cfg,
		hub:    hub,
		logger: logger.With(log.String("component", "server")),
	}
	if cfg.WebSocket.Addr != "" {
		s.ws = websocket.NewServer(cfg.WebSocket, hub, logger)
	}
	if cfg.QUIC.Addr != "" && cfg.TLS != nil {
		s.quic = quic.NewServer(cfg.QUIC, cfg.TLS, hub, logger)
	}
	return s
}

func (s *Server) Hub() *relay.Hub {
	return s.hub
}

func (s *Server) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Run serves every front-end until ctx ends or one of them fails; a failure
// stops the others.
func (s *Server) Run(ctx context.Context) error {
	if s.ws == nil && s.quic == nil {
		return ErrNoFrontEnd
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	g, gctx := errgroup.WithContext(ctx)
	if s.ws != nil {
		g.Go(func() error { return s.ws.ListenAndServe(gctx) })
	}
	if s.quic != nil {
		g.Go(func() error { return s.quic.ListenAndServe(gctx) })
	}

	s.logger.Info("Relay running",
		log.String("websocket_addr", s.config.WebSocket.Addr),
		log.String("quic_addr", s.config.QUIC.Addr),
	)
	err := g.Wait()
	s.logger.Info("Relay stopped", log.Int("rooms", s.hub.RoomCount()))
	return err
}
