package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stakemate/chess-server/pkg/gamedto"
)

const sendBuffer = 32

// session is one live connection: a transport id, the identity bound at
// handshake, and the match it currently follows. Destroyed on disconnect,
// never persisted.
type session struct {
	id     string
	player gamedto.Player

	mu      sync.Mutex
	matchID string

	send      chan gamedto.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(player gamedto.Player) *session {
	return &session{
		id:     uuid.NewString(),
		player: player,
		send:   make(chan gamedto.Envelope, sendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue hands env to the write pump without blocking. Messages to a closed
// or saturated peer are dropped rather than stalling the broadcaster.
func (s *session) enqueue(env gamedto.Envelope) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

func (s *session) setMatch(id string) {
	s.mu.Lock()
	s.matchID = id
	s.mu.Unlock()
}

func (s *session) currentMatch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
