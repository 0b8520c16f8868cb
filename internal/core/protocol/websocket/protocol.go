// Package websocket serves the relay over websockets and provides the
// matching client transport. Every channel is reliable on this front-end.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/relay"
	"github.com/zeusync/posesync/pkg/encoding"
)

const (
	DefaultPath         = "/ws"
	DefaultPingInterval = 30 * time.Second
)

type Config struct {
	Addr            string
	ReadBufferSize  int
	WriteBufferSize int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxFrameSize    int64
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteTimeout:    5 * time.Second,
		PingInterval:    DefaultPingInterval,
		MaxFrameSize:    64 << 10,
	}
}

// Server upgrades /ws?room=<name> requests and joins them to the hub.
type Server struct {
	config   Config
	hub      *relay.Hub
	upgrader websocket.Upgrader
	logger   log.Log

	active int64
	total  int64
}

func NewServer(config Config, hub *relay.Hub, logger log.Log) *Server {
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	return &Server{
		config: config,
		hub:    hub,
		logger: logger.With(log.String("protocol", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler routes /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DefaultPath, s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx ends, then shuts the HTTP server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("WebSocket relay started", log.String("address", s.config.Addr))

	select {
	case err := <-errCh:
		return errors.Wrap(err, "websocket server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown HTTP server")
	}
	s.logger.Info("WebSocket relay stopped")
	return nil
}

// ActiveConnections is the number of sessions currently served.
func (s *Server) ActiveConnections() int64 {
	return atomic.LoadInt64(&s.active)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomName, err := relay.NormalizeRoom(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := NewConnection(s.hub.NewClientID(), conn, s.config)
	if err = s.hub.Join(roomName, client); err != nil {
		s.logger.Warn("Join rejected", log.String("room", roomName), log.Error(err))
		_ = client.CloseWithReason(websocket.CloseTryAgainLater, err.Error())
		return
	}

	atomic.AddInt64(&s.active, 1)
	atomic.AddInt64(&s.total, 1)
	s.handleClient(roomName, client)
}

func (s *Server) handleClient(roomName string, client *Connection) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.hub.Leave(roomName, client.ID())
		atomic.AddInt64(&s.active, -1)
		_ = client.Close()
		s.logger.Info("Client disconnected", log.String("client_id", client.ID()))
	}()

	go func() {
		ticker := time.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.Ping(time.Now().Add(10 * time.Second)); err != nil {
					s.logger.Debug("Failed to send ping", log.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		data, err := client.Receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(errors.Cause(err), websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", log.Error(err))
			}
			return
		}

		frame, err := encoding.DecodeFrame(data)
		if err != nil || frame.Kind != encoding.FrameData {
			s.logger.Debug("Dropping client frame", log.String("client_id", client.ID()), log.Error(err))
			continue
		}
		if err = s.hub.Forward(roomName, client.ID(), frame.Channel, frame.Payload); err != nil {
			s.logger.Debug("Forward failed", log.Error(err))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","connections":%d,"rooms":%d}`, s.ActiveConnections(), s.hub.RoomCount())
}
