package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stakemate/chess-server/internal/engine"
	"github.com/stakemate/chess-server/internal/obslog"
	"github.com/stakemate/chess-server/pkg/gamedto"
)

// Registry maps match IDs to live sessions. It is the only process-wide
// mutable structure besides per-match state; its lock guards the map only and
// is never held across engine evaluation.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

// Create inserts a new waiting match with creator bound to white and returns
// it. IDs are UUIDs, collision-resistant within the process lifetime.
func (r *Registry) Create(stake string, creator Player) *Match {
	now := time.Now()
	m := &Match{
		ID:        uuid.NewString(),
		White:     creator,
		Stake:     stake,
		Status:    StatusWaiting,
		FEN:       engine.StartFEN(),
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.matches[m.ID] = m
	r.mu.Unlock()

	obslog.L().Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("white", creator.Address),
		zap.String("stake", stake),
	)
	return m
}

// Get is a pure lookup; absence is a first-class outcome.
func (r *Registry) Get(id string) (*Match, bool) {
	r.mu.RLock()
	m, ok := r.matches[id]
	r.mu.RUnlock()
	return m, ok
}

// Remove deletes the entry. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.matches[id]
	delete(r.matches, id)
	r.mu.Unlock()
	if ok {
		obslog.L().Info("match_remove", zap.String("match_id", id))
	}
}

// Len reports the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Join binds joiner to the black slot and activates the match. A second join
// against a bound slot fails without mutating state, as does a join by the
// creator against their own match.
func (r *Registry) Join(id string, joiner Player) (*gamedto.Snapshot, error) {
	m, ok := r.Get(id)
	if !ok {
		return nil, ErrGameNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != StatusWaiting || m.Black != nil {
		return nil, ErrGameFull
	}
	if m.White.Address == joiner.Address {
		// one player may not occupy both slots
		return nil, ErrGameFull
	}
	m.Black = &joiner
	m.Status = StatusActive
	m.UpdatedAt = time.Now()

	obslog.L().Info("match_join",
		zap.String("match_id", m.ID),
		zap.String("black", joiner.Address),
	)
	return m.snapshotLocked(), nil
}

// ApplyMove runs the full move pipeline for one match: status check, turn
// authorization, engine validation, mutation, terminal detection. The match
// mutex is held for the whole pipeline so two concurrent submissions can
// never both read the same turn state and both be accepted. The returned
// Result is non-nil only when the move ended the game.
func (r *Registry) ApplyMove(id, requester string, mv engine.Move) (*gamedto.Snapshot, *Result, error) {
	m, ok := r.Get(id)
	if !ok {
		return nil, nil, ErrGameNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusActive {
		return nil, nil, ErrGameNotActive
	}

	// The server, not the client, decides whose move may be submitted.
	toMove := m.White.Address
	if engine.TurnOf(m.MovesUCI) == engine.SideBlack {
		toMove = m.Black.Address
	}
	if requester != toMove {
		return nil, nil, ErrNotYourTurn
	}

	res := engine.Apply(m.MovesUCI, mv)
	if !res.Legal {
		return nil, nil, ErrIllegalMove
	}

	m.FEN = res.FEN
	m.MovesUCI = append(m.MovesUCI, res.UCI)
	m.MovesSAN = append(m.MovesSAN, res.SAN)
	m.CheckedSide = res.CheckedSide
	m.UpdatedAt = time.Now()

	var final *Result
	if res.Checkmate || res.Draw {
		m.Status = StatusCompleted
		if res.Checkmate {
			// the side that delivered mate wins
			m.Winner = requester
		} else {
			m.Winner = gamedto.WinnerDraw
		}
		final = m.resultLocked()
	}

	obslog.L().Info("match_move",
		zap.String("match_id", m.ID),
		zap.String("player", requester),
		zap.String("uci", res.UCI),
		zap.String("status", string(m.Status)),
		zap.String("winner", m.Winner),
	)
	return m.snapshotLocked(), final, nil
}
