package posesync

import (
	"context"
	"time"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/protocol"
)

// Intervals are the clocks driving a Loop.
type Intervals struct {
	Frame     time.Duration
	Broadcast time.Duration
	Heartbeat time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Frame:     16 * time.Millisecond,
		Broadcast: 20 * time.Millisecond,
		Heartbeat: time.Second,
	}
}

// Loop owns a Helper and serializes everything that touches it: transport
// events, timer ticks and completed asset loads all run on the goroutine
// calling Run.
type Loop struct {
	helper    *Helper
	transport protocol.Transport
	ready     *Readiness
	intervals Intervals
	logger    log.Log

	inbox chan func()
	done  chan struct{}
}

func NewLoop(h *Helper, t protocol.Transport, ready *Readiness, intervals Intervals, logger log.Log) *Loop {
	def := DefaultIntervals()
	if intervals.Frame <= 0 {
		intervals.Frame = def.Frame
	}
	if intervals.Broadcast <= 0 {
		intervals.Broadcast = def.Broadcast
	}
	if intervals.Heartbeat <= 0 {
		intervals.Heartbeat = def.Heartbeat
	}

	l := &Loop{
		helper:    h,
		transport: t,
		ready:     ready,
		intervals: intervals,
		logger:    logger.With(log.String("component", "loop")),
		inbox:     make(chan func(), 64),
		done:      make(chan struct{}),
	}
	h.post = l.Post
	return l
}

// Post schedules fn on the loop goroutine. It is dropped once the loop has
// stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.inbox <- fn:
	case <-l.done:
	}
}

// Run processes events until ctx ends or the transport closes its event
// stream. The helper is closed on return.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.helper.Close()

	frame := time.NewTicker(l.intervals.Frame)
	defer frame.Stop()
	broadcast := time.NewTicker(l.intervals.Broadcast)
	defer broadcast.Stop()
	heartbeat := time.NewTicker(l.intervals.Heartbeat)
	defer heartbeat.Stop()

	var ready <-chan struct{}
	if l.ready != nil {
		ready = l.ready.Done()
	}
	events := l.transport.Events()

	l.logger.Info("Sync loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Sync loop stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrTransportClosed
			}
			l.helper.Handle(ev)
		case fn := <-l.inbox:
			fn()
		case <-ready:
			l.helper.AttachLocal(l.ready.Rig())
			ready = nil
		case <-frame.C:
			l.helper.Frame()
		case <-broadcast.C:
			l.helper.Broadcast()
		case <-heartbeat.C:
			l.helper.Heartbeat()
		}
	}
}
