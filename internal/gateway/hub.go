package gateway

import (
	"sync"

	"github.com/stakemate/chess-server/pkg/gamedto"
)

// Hub fans snapshots out to every live connection following a match. It only
// knows sessions and match ids; match state lives in the registry.
type Hub struct {
	mu      sync.RWMutex
	byMatch map[string]map[*session]struct{}
}

func NewHub() *Hub {
	return &Hub{byMatch: make(map[string]map[*session]struct{})}
}

// Bind associates s with matchID, detaching it from any previous match. A
// session follows at most one match at a time.
func (h *Hub) Bind(s *session, matchID string) {
	h.mu.Lock()
	h.detachLocked(s)
	set, ok := h.byMatch[matchID]
	if !ok {
		set = make(map[*session]struct{})
		h.byMatch[matchID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	s.setMatch(matchID)
}

// Drop removes s from the hub entirely. The match itself is untouched;
// disconnect is non-destructive.
func (h *Hub) Drop(s *session) {
	h.mu.Lock()
	h.detachLocked(s)
	h.mu.Unlock()
	s.setMatch("")
}

func (h *Hub) detachLocked(s *session) {
	if prev := s.currentMatch(); prev != "" {
		if set, ok := h.byMatch[prev]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.byMatch, prev)
			}
		}
	}
}

// Broadcast delivers env to every session bound to matchID. Sends are
// non-blocking handoffs to per-connection write pumps, so a slow or dead
// peer never stalls the caller or other recipients.
func (h *Hub) Broadcast(matchID string, env gamedto.Envelope) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.byMatch[matchID]))
	for s := range h.byMatch[matchID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(env)
	}
}

// Audience reports how many sessions follow matchID.
func (h *Hub) Audience(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byMatch[matchID])
}
