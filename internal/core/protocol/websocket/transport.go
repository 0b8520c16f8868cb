package websocket

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/pkg/encoding"
)

const eventBuffer = 256

var _ protocol.Transport = (*Transport)(nil)

// Transport is the client side of the websocket relay.
type Transport struct {
	conn   *Connection
	logger log.Log

	clientID atomic.Value
	events   chan protocol.Event
	done     chan struct{}
	once     sync.Once

	// buf is reused for outgoing frames under bufMu.
	bufMu sync.Mutex
	buf   []byte
}

// Dial connects to a relay at rawURL (ws:// or wss://) and joins room.
func Dial(ctx context.Context, rawURL, room string, config Config, logger log.Log) (*Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid relay url")
	}
	if u.Path == "" {
		u.Path = DefaultPath
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial relay")
	}

	t := &Transport{
		conn:   NewConnection("", ws, config),
		logger: logger.With(log.String("protocol", "websocket"), log.String("room", room)),
		events: make(chan protocol.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	t.clientID.Store("")
	go t.readLoop()
	return t, nil
}

func (t *Transport) ClientID() string {
	return t.clientID.Load().(string)
}

func (t *Transport) Events() <-chan protocol.Event {
	return t.events
}

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
	return t.conn.Write(frame)
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) readLoop() {
	var cause error
	defer func() {
		t.emit(protocol.Event{Kind: protocol.EventDisconnected, Err: cause})
		close(t.events)
	}()

	for {
		data, err := t.conn.Receive()
		if err != nil {
			select {
			case <-t.done:
			default:
				if !websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure) {
					cause = err
				}
			}
			return
		}

		frame, err := encoding.DecodeFrame(data)
		if err != nil {
			t.logger.Warn("Dropping relay frame", log.Error(err))
			continue
		}
		events, err := protocol.FrameEvents(frame)
		if err != nil {
			t.logger.Warn("Dropping relay frame", log.Error(err))
			continue
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
}

func (t *Transport) emit(ev protocol.Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}
