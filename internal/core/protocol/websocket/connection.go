package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/posesync/internal/core/protocol"
)

// Connection serializes writes to a websocket and carries binary relay frames.
type Connection struct {
	id     string
	conn   *websocket.Conn
	config Config
	closed int32

	// Metrics
	framesSent     uint64
	framesReceived uint64
	bytesSent      uint64
	bytesReceived  uint64

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex
}

func NewConnection(id string, conn *websocket.Conn, config Config) *Connection {
	if config.MaxFrameSize > 0 {
		conn.SetReadLimit(config.MaxFrameSize)
	}
	return &Connection{id: id, conn: conn, config: config}
}

func (c *Connection) ID() string {
	return c.id
}

// Send writes one frame. Websockets are reliable so the hint is ignored.
func (c *Connection) Send(frame []byte, _ bool) error {
	return c.Write(frame)
}

// Write sends data as one binary message.
func (c *Connection) Write(data []byte) error {
	if c.IsClosed() {
		return protocol.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}

	atomic.AddUint64(&c.framesSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(len(data)))
	return nil
}

// Receive blocks for the next binary message. The returned slice is owned by
// the caller.
func (c *Connection) Receive() ([]byte, error) {
	if c.IsClosed() {
		return nil, protocol.ErrClosed
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.BinaryMessage {
		return nil, errors.New("unsupported message type")
	}

	atomic.AddUint64(&c.framesReceived, 1)
	atomic.AddUint64(&c.bytesReceived, uint64(len(data)))
	return data, nil
}

func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Connection) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "connection closed")
}

// CloseWithReason sends a close frame with code and reason before closing the socket.
func (c *Connection) CloseWithReason(code int, reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}

// Ping writes a ping control frame.
func (c *Connection) Ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Stats reports frame and byte counters.
func (c *Connection) Stats() Stats {
	return Stats{
		FramesSent:     atomic.LoadUint64(&c.framesSent),
		FramesReceived: atomic.LoadUint64(&c.framesReceived),
		BytesSent:      atomic.LoadUint64(&c.bytesSent),
		BytesReceived:  atomic.LoadUint64(&c.bytesReceived),
	}
}

type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
}
