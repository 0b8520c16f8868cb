package quic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/posesync/internal/core/protocol"
)

// Connection pairs a QUIC connection with its control stream.
type Connection struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	config Config
	closed int32

	datagramsSent uint64
	framesSent    uint64

	writeMu sync.Mutex
	buf     []byte
}

func NewConnection(id string, conn *quic.Conn, stream *quic.Stream, config Config) *Connection {
	return &Connection{id: id, conn: conn, stream: stream, config: config}
}

func (c *Connection) ID() string {
	return c.id
}

// Send writes frame as a datagram when unreliable delivery is acceptable
// and it fits, otherwise on the control stream.
func (c *Connection) Send(frame []byte, reliable bool) error {
	if c.IsClosed() {
		return protocol.ErrClosed
	}
	if !reliable && len(frame) <= maxDatagramFrame {
		if err := c.conn.SendDatagram(frame); err != nil {
			return errors.Wrap(err, "failed to send datagram")
		}
		atomic.AddUint64(&c.datagramsSent, 1)
		return nil
	}
	return c.WriteStream(frame)
}

// WriteStream writes one length-prefixed frame on the control stream.
func (c *Connection) WriteStream(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := appendLengthPrefixed(c.buf[:0], frame)
	if err != nil {
		return err
	}
	c.buf = data

	if c.config.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if _, err = c.stream.Write(data); err != nil {
		return errors.Wrap(err, "failed to write stream frame")
	}
	atomic.AddUint64(&c.framesSent, 1)
	return nil
}

// ReadStream blocks for the next control-stream frame.
func (c *Connection) ReadStream() ([]byte, error) {
	return readLengthPrefixed(c.stream)
}

// ReadDatagram blocks for the next datagram.
func (c *Connection) ReadDatagram(ctx context.Context) ([]byte, error) {
	return c.conn.ReceiveDatagram(ctx)
}

func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Context is done once the underlying connection is gone.
func (c *Connection) Context() context.Context {
	return c.conn.Context()
}

func (c *Connection) Close() error {
	return c.CloseWithReason(0, "connection closed")
}

func (c *Connection) CloseWithReason(code quic.ApplicationErrorCode, reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.CloseWithError(code, reason)
}

// Stats reports datagram and stream frame counters.
func (c *Connection) Stats() (datagrams, frames uint64) {
	return atomic.LoadUint64(&c.datagramsSent), atomic.LoadUint64(&c.framesSent)
}
