package quic

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/pkg/encoding"
)

const eventBuffer = 256

var _ protocol.Transport = (*Transport)(nil)

// Transport is the client side of the QUIC relay.
type Transport struct {
	conn   *Connection
	logger log.Log

	clientID atomic.Value
	events   chan protocol.Event
	done     chan struct{}
	once     sync.Once
	readers  sync.WaitGroup

	bufMu sync.Mutex
	buf   []byte
}

// Dial connects to the relay at addr and joins room.
func Dial(ctx context.Context, addr, room string, tlsConfig *tls.Config, config Config, logger log.Log) (*Transport, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, config.quicConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial relay")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "failed to open control stream")
	}

	t := &Transport{
		conn:   NewConnection("", conn, stream, config),
		logger: logger.With(log.String("protocol", "quic"), log.String("room", room)),
		events: make(chan protocol.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	t.clientID.Store("")

	if err = t.conn.WriteStream([]byte(room)); err != nil {
		_ = t.conn.Close()
		return nil, err
	}

	t.readers.Add(2)
	go t.readStream()
	go t.readDatagrams()
	go func() {
		t.readers.Wait()
		t.emit(protocol.Event{Kind: protocol.EventDisconnected, Err: t.cause()})
		close(t.events)
	}()
	return t, nil
}

func (t *Transport) ClientID() string {
	return t.clientID.Load().(string)
}

func (t *Transport) Events() <-chan protocol.Event {
	return t.events
}

// Broadcast sends pose channels as datagrams and everything else on the
// control stream.
func (t *Transport) Broadcast(channel string, payload []byte) error {
	select {
	case <-t.done:
		return protocol.ErrClosed
	default:
	}
	if t.ClientID() == "" {
		return protocol.ErrNotConnected
	}

	t.bufMu.Lock()
	defer t.bufMu.Unlock()
	frame, err := encoding.AppendFrame(t.buf[:0], encoding.Frame{
		Kind:    encoding.FrameData,
		Channel: channel,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	t.buf = frame
	return t.conn.Send(frame, protocol.Reliable(channel))
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) readStream() {
	defer t.readers.Done()
	// Losing the control stream ends the session.
	defer t.conn.Close()

	for {
		data, err := t.conn.ReadStream()
		if err != nil {
			return
		}
		t.dispatch(data)
	}
}

func (t *Transport) readDatagrams() {
	defer t.readers.Done()
	for {
		data, err := t.conn.ReadDatagram(t.conn.Context())
		if err != nil {
			return
		}
		// A datagram can overtake the welcome on the stream.
		if t.ClientID() == "" {
			continue
		}
		t.dispatch(data)
	}
}

func (t *Transport) dispatch(data []byte) {
	frame, err := encoding.DecodeFrame(data)
	if err != nil {
		t.logger.Warn("Dropping relay frame", log.Error(err))
		return
	}
	events, err := protocol.FrameEvents(frame)
	if err != nil {
		t.logger.Warn("Dropping relay frame", log.Error(err))
		return
	}
	for _, ev := range events {
		if ev.Kind == protocol.EventConnected {
			t.clientID.Store(ev.ClientID)
		}
		if !t.emit(ev) {
			return
		}
	}
}

// cause is nil for a locally requested close.
func (t *Transport) cause() error {
	select {
	case <-t.done:
		return nil
	default:
	}
	var appErr *quic.ApplicationError
	if err := context.Cause(t.conn.Context()); errors.As(err, &appErr) && appErr.ErrorCode == 0 && appErr.Remote {
		return nil
	} else if err != nil {
		return err
	}
	return protocol.ErrClosed
}

func (t *Transport) emit(ev protocol.Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}
