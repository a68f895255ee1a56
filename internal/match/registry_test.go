package match

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stakemate/chess-server/internal/engine"
	"github.com/stakemate/chess-server/pkg/gamedto"
)

var (
	alice = Player{Address: "0xAAA", Username: "alice"}
	bob   = Player{Address: "0xBBB", Username: "bob"}
)

func newActiveMatch(t *testing.T, r *Registry) *Match {
	t.Helper()
	m := r.Create("0.01", alice)
	if _, err := r.Join(m.ID, bob); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return m
}

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry()
	m := r.Create("0.01", alice)
	if m.ID == "" || m.Status != StatusWaiting {
		t.Fatalf("unexpected new match: %+v", m)
	}
	got, ok := r.Get(m.ID)
	if !ok || got != m {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := r.Get("no-such-id"); ok {
		t.Fatalf("unknown id should be a clean miss")
	}

	snap := m.Snapshot()
	if snap.Status != gamedto.StatusWaiting || snap.Players.White.Address != alice.Address || snap.Players.Black != nil {
		t.Fatalf("waiting snapshot wrong: %+v", snap)
	}
	if snap.Position == "" {
		t.Fatalf("snapshot must carry the start position")
	}
}

func TestCreate_DistinctIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := r.Create("0.01", alice)
			mu.Lock()
			seen[m.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 16 || r.Len() != 16 {
		t.Fatalf("expected 16 distinct matches, got %d seen / %d live", len(seen), r.Len())
	}
}

func TestJoin_Transitions(t *testing.T) {
	r := NewRegistry()
	m := r.Create("0.01", alice)

	if _, err := r.Join("missing", bob); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("join missing: %v", err)
	}
	if _, err := r.Join(m.ID, alice); !errors.Is(err, ErrGameFull) {
		t.Fatalf("creator joining own match: %v", err)
	}

	snap, err := r.Join(m.ID, bob)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if snap.Status != gamedto.StatusActive || snap.Players.Black.Address != bob.Address {
		t.Fatalf("active snapshot wrong: %+v", snap)
	}

	// second join never mutates
	carol := Player{Address: "0xCCC", Username: "carol"}
	if _, err := r.Join(m.ID, carol); !errors.Is(err, ErrGameFull) {
		t.Fatalf("second join: %v", err)
	}
	if m.Black.Address != bob.Address || m.Status != StatusActive {
		t.Fatalf("failed join mutated state: %+v", m)
	}
}

func TestApplyMove_TurnAuthorization(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	// black may not open
	if _, _, err := r.ApplyMove(m.ID, bob.Address, engine.Move{From: "e7", To: "e5"}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want NotYourTurn, got %v", err)
	}
	if len(m.MovesUCI) != 0 {
		t.Fatalf("rejected move mutated the log")
	}

	snap, final, err := r.ApplyMove(m.ID, alice.Address, engine.Move{From: "e2", To: "e4"})
	if err != nil || final != nil {
		t.Fatalf("ApplyMove: snap=%v final=%v err=%v", snap, final, err)
	}
	if len(snap.MoveLog) != 1 || snap.MoveLog[0] != "e2e4" || snap.CheckedSide != "" {
		t.Fatalf("snapshot after e4: %+v", snap)
	}

	// white may not move twice in a row
	if _, _, err := r.ApplyMove(m.ID, alice.Address, engine.Move{From: "d2", To: "d4"}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want NotYourTurn, got %v", err)
	}
}

func TestApplyMove_IllegalNoMutation(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	fenBefore := m.Snapshot().Position
	if _, _, err := r.ApplyMove(m.ID, alice.Address, engine.Move{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("want IllegalMove, got %v", err)
	}
	snap := m.Snapshot()
	if snap.Position != fenBefore || len(snap.MoveLog) != 0 {
		t.Fatalf("illegal move mutated state: %+v", snap)
	}
}

func TestApplyMove_CheckAndMate(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	// 1.e4 f6 2.Qh5+ puts black in check
	mustMove(t, r, m.ID, alice.Address, "e2", "e4")
	mustMove(t, r, m.ID, bob.Address, "f7", "f6")
	snap, final, err := r.ApplyMove(m.ID, alice.Address, engine.Move{From: "d1", To: "h5"})
	if err != nil || final != nil {
		t.Fatalf("Qh5: %v", err)
	}
	if snap.CheckedSide != "black" {
		t.Fatalf("checkedSide = %q, want black", snap.CheckedSide)
	}
}

func TestApplyMove_FoolsMateWinnerIsMover(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	mustMove(t, r, m.ID, alice.Address, "f2", "f3")
	mustMove(t, r, m.ID, bob.Address, "e7", "e5")
	mustMove(t, r, m.ID, alice.Address, "g2", "g4")

	snap, final, err := r.ApplyMove(m.ID, bob.Address, engine.Move{From: "d8", To: "h4"})
	if err != nil {
		t.Fatalf("mating move: %v", err)
	}
	if snap.Status != gamedto.StatusCompleted || snap.Winner != bob.Address {
		t.Fatalf("mate snapshot: status=%q winner=%q", snap.Status, snap.Winner)
	}
	if final == nil || final.Winner != bob.Address || len(final.MovesSAN) != 4 {
		t.Fatalf("final result: %+v", final)
	}
	if !strings.HasSuffix(final.MovesSAN[3], "#") {
		t.Fatalf("last SAN %q should be mate", final.MovesSAN[3])
	}

	// completed matches reject every further move, any requester
	for _, addr := range []string{alice.Address, bob.Address, "0xCCC"} {
		if _, _, err := r.ApplyMove(m.ID, addr, engine.Move{From: "a2", To: "a3"}); !errors.Is(err, ErrGameNotActive) {
			t.Fatalf("move on completed match by %s: %v", addr, err)
		}
	}
}

func TestApplyMove_StalemateEndsInDraw(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	// Loyd's ten-move stalemate, all but white's final Qe6
	script := [][2]string{
		{"e2", "e3"}, {"a7", "a5"},
		{"d1", "h5"}, {"a8", "a6"},
		{"h5", "a5"}, {"h7", "h5"},
		{"a5", "c7"}, {"a6", "h6"},
		{"h2", "h4"}, {"f7", "f6"},
		{"c7", "d7"}, {"e8", "f7"},
		{"d7", "b7"}, {"d8", "d3"},
		{"b7", "b8"}, {"d3", "h7"},
		{"b8", "c8"}, {"f7", "g6"},
	}
	for i, mv := range script {
		addr := alice.Address
		if i%2 == 1 {
			addr = bob.Address
		}
		mustMove(t, r, m.ID, addr, mv[0], mv[1])
	}

	snap, final, err := r.ApplyMove(m.ID, alice.Address, engine.Move{From: "c8", To: "e6"})
	if err != nil {
		t.Fatalf("stalemating move: %v", err)
	}
	if snap.Status != gamedto.StatusCompleted || snap.Winner != gamedto.WinnerDraw {
		t.Fatalf("draw snapshot: status=%q winner=%q", snap.Status, snap.Winner)
	}
	if snap.CheckedSide != "" {
		t.Fatalf("stalemate reported a checked side: %q", snap.CheckedSide)
	}
	if final == nil || final.Winner != gamedto.WinnerDraw {
		t.Fatalf("final result: %+v", final)
	}

	if _, _, err := r.ApplyMove(m.ID, bob.Address, engine.Move{From: "g7", To: "g5"}); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("move on drawn match: %v", err)
	}
}

func TestApplyMove_ReplayReproducesPosition(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	script := [][2]string{{"e2", "e4"}, {"c7", "c5"}, {"g1", "f3"}, {"d7", "d6"}}
	movers := []string{alice.Address, bob.Address, alice.Address, bob.Address}
	for i, mv := range script {
		mustMove(t, r, m.ID, movers[i], mv[0], mv[1])
	}

	snap := m.Snapshot()
	if len(snap.MoveLog) != len(script) {
		t.Fatalf("moveLog length %d, want %d", len(snap.MoveLog), len(script))
	}
	fen, ok := engine.Replay(snap.MoveLog)
	if !ok || fen != snap.Position {
		t.Fatalf("replay fen %q (ok=%v) != stored %q", fen, ok, snap.Position)
	}
}

func TestApplyMove_ConcurrentSameTurn(t *testing.T) {
	r := NewRegistry()
	m := newActiveMatch(t, r)

	moves := []engine.Move{{From: "e2", To: "e4"}, {From: "d2", To: "d4"}}
	var wg sync.WaitGroup
	errs := make([]error, len(moves))
	for i, mv := range moves {
		wg.Add(1)
		go func(i int, mv engine.Move) {
			defer wg.Done()
			_, _, errs[i] = r.ApplyMove(m.ID, alice.Address, mv)
		}(i, mv)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else if !errors.Is(err, ErrNotYourTurn) {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
	if accepted != 1 || len(m.MovesUCI) != 1 {
		t.Fatalf("accepted %d concurrent same-turn moves, log=%v", accepted, m.MovesUCI)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	r := NewRegistry()
	m := r.Create("0.01", alice)
	r.Remove(m.ID)
	if _, ok := r.Get(m.ID); ok {
		t.Fatalf("match still present after Remove")
	}
	r.Remove(m.ID) // no-op
	r.Remove("never-existed")
}

func mustMove(t *testing.T, r *Registry, id, addr, from, to string) {
	t.Helper()
	if _, _, err := r.ApplyMove(id, addr, engine.Move{From: from, To: to}); err != nil {
		t.Fatalf("move %s%s by %s: %v", from, to, addr, err)
	}
}
