package relay

import (
	"sync"

	"go.uber.org/zap"
)

// peer is one websocket connection of a signed-in user.
type peer struct {
	userID   int64
	outgoing chan []byte
}

// Hub tracks connected peers by user id. A user may hold several
// connections; each receives every frame addressed to the user.
type Hub struct {
	mu    sync.RWMutex
	peers map[int64]map[*peer]struct{}
	log   *zap.Logger
}

func newHub(log *zap.Logger) *Hub {
	return &Hub{peers: make(map[int64]map[*peer]struct{}), log: log}
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.peers[p.userID]
	if !ok {
		set = make(map[*peer]struct{})
		h.peers[p.userID] = set
	}
	set[p] = struct{}{}
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.peers[p.userID]
	delete(set, p)
	if len(set) == 0 {
		delete(h.peers, p.userID)
	}
}

// sendTo queues data for every connection of userID and returns how many
// accepted it. Full queues are skipped.
func (h *Hub) sendTo(userID int64, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for p := range h.peers[userID] {
		select {
		case p.outgoing <- data:
			n++
		default:
			h.log.Warn("peer queue full, dropping frame", zap.Int64("user", userID))
		}
	}
	return n
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.peers {
		n += len(set)
	}
	return n
}
