// Package match owns the authoritative per-game state: the registry of live
// matches, the session state machine, and the archive of finished games.
package match

import (
	"errors"
	"sync"
	"time"

	"github.com/stakemate/chess-server/internal/engine"
	"github.com/stakemate/chess-server/pkg/gamedto"
)

// Rejection reasons surfaced to the dispatcher. Each maps 1:1 onto a wire
// reason code.
var (
	ErrGameNotFound  = errors.New("game not found")
	ErrGameFull      = errors.New("game full")
	ErrGameNotActive = errors.New("game not active")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrIllegalMove   = errors.New("illegal move")
)

// Player is the identity bound at create or join time. Immutable for the
// lifetime of the match.
type Player struct {
	Address  string
	Username string
	Rating   int
	Earnings string
}

func (p Player) toDTO() *gamedto.Player {
	return &gamedto.Player{
		Address:  p.Address,
		Username: p.Username,
		Rating:   p.Rating,
		Earnings: p.Earnings,
	}
}

// Status is the match lifecycle state. Transitions run strictly
// waiting → active → completed.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Match is the authoritative record of one game. All mutation happens under
// mu; the registry never holds its own lock while a match is being mutated.
type Match struct {
	mu sync.Mutex

	ID    string
	White Player
	Black *Player
	Stake string

	Status      Status
	FEN         string
	MovesUCI    []string
	MovesSAN    []string
	Winner      string // address, or gamedto.WinnerDraw; empty until completed
	CheckedSide engine.Side

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns the serializable view broadcast to clients.
func (m *Match) Snapshot() *gamedto.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) snapshotLocked() *gamedto.Snapshot {
	snap := &gamedto.Snapshot{
		MatchID:     m.ID,
		Players:     gamedto.Players{White: m.White.toDTO()},
		Stake:       m.Stake,
		Status:      string(m.Status),
		Winner:      m.Winner,
		MoveLog:     append([]string(nil), m.MovesUCI...),
		Position:    m.FEN,
		CheckedSide: string(m.CheckedSide),
	}
	if m.Black != nil {
		snap.Players.Black = m.Black.toDTO()
	}
	return snap
}

// Result is a copy of the terminal fields consumed by the archive and the
// leaderboard after completion.
type Result struct {
	MatchID   string
	White     Player
	Black     Player
	Stake     string
	Winner    string // address or gamedto.WinnerDraw
	MovesUCI  []string
	MovesSAN  []string
	StartedAt time.Time
	EndedAt   time.Time
}

func (m *Match) resultLocked() *Result {
	res := &Result{
		MatchID:   m.ID,
		White:     m.White,
		Stake:     m.Stake,
		Winner:    m.Winner,
		MovesUCI:  append([]string(nil), m.MovesUCI...),
		MovesSAN:  append([]string(nil), m.MovesSAN...),
		StartedAt: m.CreatedAt,
		EndedAt:   m.UpdatedAt,
	}
	if m.Black != nil {
		res.Black = *m.Black
	}
	return res
}
