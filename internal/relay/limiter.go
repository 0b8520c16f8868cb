package relay

import (
	"sync"
	"time"
)

const rateWindow = time.Second

// limiter counts forwarded frames per peer in fixed one-second windows.
type limiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientRate
}

type clientRate struct {
	count   int
	window  time.Time
	dropped int
}

func newLimiter(limit int) *limiter {
	return &limiter{limit: limit, now: time.Now, clients: make(map[string]*clientRate)}
}

// allow records one frame from clientID. It reports whether the frame is
// within budget and, when a window closes with drops, how many were dropped.
func (l *limiter) allow(clientID string) (ok bool, droppedLastWindow int) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	c, exists := l.clients[clientID]
	if !exists {
		c = &clientRate{window: now}
		l.clients[clientID] = c
	}
	if now.Sub(c.window) >= rateWindow {
		droppedLastWindow = c.dropped
		c.count, c.dropped, c.window = 0, 0, now
	}
	if c.count >= l.limit {
		c.dropped++
		return false, droppedLastWindow
	}
	c.count++
	return true, droppedLastWindow
}

func (l *limiter) forget(clientID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.clients, clientID)
	l.mu.Unlock()
}
