// Package relay groups connected peers into rooms and fans their channel
// messages out to the other members.
package relay

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/protocol"
	"github.com/zeusync/posesync/pkg/encoding"
	"github.com/zeusync/posesync/pkg/generic"
)

const (
	DefaultMaxPeers     = 32
	DefaultMaxFrameRate = 240
)

// Peer is one member connection. Send must not retain frame and must be
// bounded by a write deadline: the welcome frame is sent under the hub lock.
type Peer interface {
	ID() string
	Send(frame []byte, reliable bool) error
}

type Config struct {
	MaxPeersPerRoom int
	// MaxFrameRate caps unreliable frames forwarded per peer per second.
	// Zero disables the cap.
	MaxFrameRate int
}

func DefaultConfig() Config {
	return Config{MaxPeersPerRoom: DefaultMaxPeers, MaxFrameRate: DefaultMaxFrameRate}
}

type room struct {
	name  string
	peers map[string]Peer
}

// Hub tracks room membership. It is safe for concurrent use by every
// connection handler of every front-end.
type Hub struct {
	config Config
	logger log.Log

	mu    sync.RWMutex
	rooms map[string]*room

	limiter *limiter
	frames  *generic.Pool[*[]byte]
}

func NewHub(config Config, logger log.Log) *Hub {
	if config.MaxPeersPerRoom <= 0 {
		config.MaxPeersPerRoom = DefaultMaxPeers
	}
	return &Hub{
		config:  config,
		logger:  logger.With(log.String("component", "relay")),
		rooms:   make(map[string]*room),
		limiter: newLimiter(config.MaxFrameRate),
		frames:  generic.NewBufferPool(512, 64<<10),
	}
}

// NewClientID allocates an id for a connection that is about to join.
func (h *Hub) NewClientID() string {
	return uuid.New().String()
}

// NormalizeRoom trims name and falls back to "default".
func NormalizeRoom(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "default", nil
	}
	if len(name) > 64 {
		return "", ErrInvalidRoom
	}
	return name, nil
}

// Join admits p to roomName. p receives a welcome frame carrying its id and
// every existing member receives peer-joined.
func (h *Hub) Join(roomName string, p Peer) error {
	h.mu.Lock()
	r, ok := h.rooms[roomName]
	if !ok {
		r = &room{name: roomName, peers: make(map[string]Peer)}
		h.rooms[roomName] = r
	}
	if _, dup := r.peers[p.ID()]; dup {
		h.mu.Unlock()
		return ErrDuplicatePeer
	}
	if len(r.peers) >= h.config.MaxPeersPerRoom {
		h.mu.Unlock()
		return ErrRoomFull
	}

	// The welcome goes out before p becomes visible to Forward so it is
	// always the first frame p sees.
	welcome, _ := encoding.AppendFrame(nil, encoding.Frame{Kind: encoding.FrameWelcome, ClientID: p.ID()})
	if err := p.Send(welcome, true); err != nil {
		if len(r.peers) == 0 {
			delete(h.rooms, roomName)
		}
		h.mu.Unlock()
		return err
	}
	others := r.snapshot()
	r.peers[p.ID()] = p
	h.mu.Unlock()

	joined, _ := encoding.AppendFrame(nil, encoding.Frame{Kind: encoding.FramePeerJoined, ClientID: p.ID()})
	h.fanOut(others, joined, true)

	h.logger.Info("Peer joined",
		log.String("room", roomName),
		log.String("client_id", p.ID()),
		log.Int("members", len(others)+1),
	)
	return nil
}

// Leave removes clientID from roomName and tells the remaining members.
// Empty rooms are dropped.
func (h *Hub) Leave(roomName, clientID string) {
	h.mu.Lock()
	r, ok := h.rooms[roomName]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := r.peers[clientID]; !member {
		h.mu.Unlock()
		return
	}
	delete(r.peers, clientID)
	if len(r.peers) == 0 {
		delete(h.rooms, roomName)
	}
	others := r.snapshot()
	h.mu.Unlock()
	h.limiter.forget(clientID)

	left, _ := encoding.AppendFrame(nil, encoding.Frame{Kind: encoding.FramePeerLeft, ClientID: clientID})
	h.fanOut(others, left, true)

	h.logger.Info("Peer left", log.String("room", roomName), log.String("client_id", clientID))
}

// Forward relays a data frame from clientID to the other members of its
// room, stamping the sender id. Unreliable frames past the sender's rate
// cap are dropped with ErrRateLimited.
func (h *Hub) Forward(roomName, clientID, channel string, payload []byte) error {
	h.mu.RLock()
	r, ok := h.rooms[roomName]
	if !ok {
		h.mu.RUnlock()
		return ErrUnknownPeer
	}
	if _, member := r.peers[clientID]; !member {
		h.mu.RUnlock()
		return ErrUnknownPeer
	}
	others := make([]Peer, 0, len(r.peers)-1)
	for id, p := range r.peers {
		if id != clientID {
			others = append(others, p)
		}
	}
	h.mu.RUnlock()

	reliable := protocol.Reliable(channel)
	if !reliable {
		ok, dropped := h.limiter.allow(clientID)
		if dropped > 0 {
			h.logger.Warn("Rate limit exceeded",
				log.String("room", roomName),
				log.String("client_id", clientID),
				log.Int("dropped", dropped),
				log.Int("limit", h.config.MaxFrameRate),
			)
		}
		if !ok {
			return ErrRateLimited
		}
	}

	buf := h.frames.Get()
	defer h.frames.Put(buf)
	frame, err := encoding.AppendFrame((*buf)[:0], encoding.Frame{
		Kind:     encoding.FrameData,
		Channel:  channel,
		ClientID: clientID,
		Payload:  payload,
	})
	*buf = frame[:0]
	if err != nil {
		return err
	}
	h.fanOut(others, frame, reliable)
	return nil
}

// Members lists the ids in roomName, sorted.
func (h *Hub) Members(roomName string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomName]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, r := range h.rooms {
		n += len(r.peers)
	}
	return n
}

func (h *Hub) fanOut(peers []Peer, frame []byte, reliable bool) {
	for _, p := range peers {
		if err := p.Send(frame, reliable); err != nil {
			h.logger.Debug("Relay send failed", log.String("client_id", p.ID()), log.Error(err))
		}
	}
}

func (r *room) snapshot() []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}
