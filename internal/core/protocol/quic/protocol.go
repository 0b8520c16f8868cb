package quic

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/relay"
	"github.com/zeusync/posesync/pkg/encoding"
)

const (
	closeRejected quic.ApplicationErrorCode = 0x10
	joinTimeout                             = 5 * time.Second
)

// Server accepts QUIC connections, reads the room name the client writes
// first on its control stream and joins it to the hub.
type Server struct {
	config Config
	tls    *tls.Config
	hub    *relay.Hub
	logger log.Log

	active int64
}

func NewServer(config Config, tlsConfig *tls.Config, hub *relay.Hub, logger log.Log) *Server {
	return &Server{
		config: config,
		tls:    tlsConfig,
		hub:    hub,
		logger: logger.With(log.String("protocol", "quic")),
	}
}

// ListenAndServe accepts connections until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := quic.ListenAddr(s.config.Addr, s.tls, s.config.quicConfig())
	if err != nil {
		return errors.Wrap(err, "failed to start QUIC listener")
	}
	defer listener.Close()
	return s.Serve(ctx, listener)
}

// Serve runs the accept loop on an existing listener.
func (s *Server) Serve(ctx context.Context, listener *quic.Listener) error {
	s.logger.Info("QUIC relay started", log.String("address", listener.Addr().String()))
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("QUIC relay stopped")
				return nil
			}
			return errors.Wrap(err, "failed to accept QUIC connection")
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) ActiveConnections() int64 {
	return atomic.LoadInt64(&s.active)
}

func (s *Server) handleConnection(ctx context.Context, conn *quic.Conn) {
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	stream, err := conn.AcceptStream(joinCtx)
	cancel()
	if err != nil {
		_ = conn.CloseWithError(closeRejected, "no control stream")
		return
	}

	roomFrame, err := readLengthPrefixed(stream)
	if err != nil {
		_ = conn.CloseWithError(closeRejected, "no room")
		return
	}
	roomName, err := relay.NormalizeRoom(string(roomFrame))
	if err != nil {
		_ = conn.CloseWithError(closeRejected, err.Error())
		return
	}

	client := NewConnection(s.hub.NewClientID(), conn, stream, s.config)
	if err = s.hub.Join(roomName, client); err != nil {
		s.logger.Warn("Join rejected", log.String("room", roomName), log.Error(err))
		_ = client.CloseWithReason(closeRejected, err.Error())
		return
	}
	atomic.AddInt64(&s.active, 1)
	s.logger.Info("QUIC client connected",
		log.String("client_id", client.ID()),
		log.String("remote_addr", conn.RemoteAddr().String()),
	)

	defer func() {
		s.hub.Leave(roomName, client.ID())
		atomic.AddInt64(&s.active, -1)
		_ = client.Close()
		s.logger.Info("QUIC client disconnected", log.String("client_id", client.ID()))
	}()

	go func() {
		for {
			data, err := client.ReadDatagram(client.Context())
			if err != nil {
				return
			}
			s.forward(roomName, client, data)
		}
	}()

	for {
		data, err := client.ReadStream()
		if err != nil {
			s.logger.Debug("Control stream closed", log.String("client_id", client.ID()), log.Error(err))
			return
		}
		s.forward(roomName, client, data)
	}
}

func (s *Server) forward(roomName string, client *Connection, data []byte) {
	frame, err := encoding.DecodeFrame(data)
	if err != nil || frame.Kind != encoding.FrameData {
		s.logger.Debug("Dropping client frame", log.String("client_id", client.ID()), log.Error(err))
		return
	}
	if err = s.hub.Forward(roomName, client.ID(), frame.Channel, frame.Payload); err != nil {
		s.logger.Debug("Forward failed", log.Error(err))
	}
}
