package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/stakemate/chess-server/internal/engine"
	"github.com/stakemate/chess-server/internal/escrow"
	"github.com/stakemate/chess-server/internal/leaderboard"
	"github.com/stakemate/chess-server/internal/match"
	"github.com/stakemate/chess-server/internal/msgcat"
	"github.com/stakemate/chess-server/internal/obslog"
	"github.com/stakemate/chess-server/pkg/gamedto"
)

const finalizeTimeout = 10 * time.Second

// Dispatcher routes inbound events: it validates them against match state,
// mutates through the registry, and scopes every side effect — rejections and
// acknowledgments unicast to the sender, successful state changes broadcast
// to the match.
type Dispatcher struct {
	registry *match.Registry
	hub      *Hub
	catalog  *msgcat.Catalog

	verifier escrow.Verifier
	board    *leaderboard.Board
	archive  match.Archiver

	minStake float64
	maxStake float64
}

type DispatcherOption func(*Dispatcher)

// WithEscrow enables on-chain existence checks before joinGame.
func WithEscrow(v escrow.Verifier) DispatcherOption {
	return func(d *Dispatcher) { d.verifier = v }
}

// WithLeaderboard wires standings updates on completion.
func WithLeaderboard(b *leaderboard.Board) DispatcherOption {
	return func(d *Dispatcher) { d.board = b }
}

// WithArchiver wires the finished-match archive.
func WithArchiver(a match.Archiver) DispatcherOption {
	return func(d *Dispatcher) { d.archive = a }
}

// WithStakeBounds overrides the createGame stake range.
func WithStakeBounds(min, max float64) DispatcherOption {
	return func(d *Dispatcher) { d.minStake, d.maxStake = min, max }
}

func NewDispatcher(registry *match.Registry, hub *Hub, catalog *msgcat.Catalog, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		hub:      hub,
		catalog:  catalog,
		minStake: 0.00001,
		maxStake: 0.1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one inbound envelope from s. Every failure path ends in a
// unicast error; nothing here panics or reaches the hub on rejection.
func (d *Dispatcher) Dispatch(ctx context.Context, s *session, env gamedto.Envelope) {
	switch env.Type {
	case gamedto.EventCreateGame:
		d.handleCreate(s, env.Data)
	case gamedto.EventJoinGame:
		d.handleJoin(ctx, s, env.Data)
	case gamedto.EventMakeMove:
		d.handleMove(s, env.Data)
	case gamedto.EventRequestInitState:
		d.handleInitState(s, env.Data)
	default:
		obslog.L().Warn("event_unknown",
			zap.String("session_id", s.id),
			zap.String("type", env.Type),
		)
		d.reject(s, gamedto.ReasonInvalidPayload, "error.invalid_payload", nil)
	}
}

func (d *Dispatcher) handleCreate(s *session, raw json.RawMessage) {
	var payload gamedto.CreateGamePayload
	if !d.decode(s, raw, &payload) {
		return
	}
	stake, err := strconv.ParseFloat(payload.Stake, 64)
	if err != nil || stake < d.minStake || stake > d.maxStake {
		d.reject(s, gamedto.ReasonInvalidPayload, "error.stake_out_of_range", map[string]any{
			"Stake": payload.Stake,
			"Min":   strconv.FormatFloat(d.minStake, 'f', -1, 64),
			"Max":   strconv.FormatFloat(d.maxStake, 'f', -1, 64),
		})
		return
	}

	m := d.registry.Create(payload.Stake, creatorOf(s))
	d.hub.Bind(s, m.ID)
	d.unicast(s, gamedto.EventGameCreated, gamedto.GameCreatedPayload{MatchID: m.ID})
}

func (d *Dispatcher) handleJoin(ctx context.Context, s *session, raw json.RawMessage) {
	var payload gamedto.JoinGamePayload
	if !d.decode(s, raw, &payload) || !d.requireMatchID(s, payload.MatchID) {
		return
	}

	if d.verifier != nil && !d.verifyEscrow(ctx, s, payload.MatchID) {
		return
	}

	snap, err := d.registry.Join(payload.MatchID, creatorOf(s))
	if err != nil {
		d.rejectErr(s, err)
		return
	}
	d.hub.Bind(s, payload.MatchID)
	d.broadcast(payload.MatchID, gamedto.EventGameState, snap)
}

// verifyEscrow confirms the join target is backed on chain and that the
// deposited amount matches the listed stake. An unreachable chain node must
// not take match play down with it, so RPC transport errors pass; only a
// definitive negative answer rejects the join.
func (d *Dispatcher) verifyEscrow(ctx context.Context, s *session, matchID string) bool {
	m, ok := d.registry.Get(matchID)
	if !ok {
		d.rejectErr(s, match.ErrGameNotFound)
		return false
	}

	exists, err := d.verifier.MatchExists(ctx, matchID)
	if err != nil {
		obslog.L().Warn("escrow_verify_error",
			zap.String("match_id", matchID),
			zap.Error(err),
		)
		return true
	}
	if !exists {
		d.reject(s, gamedto.ReasonGameNotFound, "error.escrow_unverified", nil)
		return false
	}

	deposited, err := d.verifier.StakeOf(ctx, matchID)
	if err != nil {
		obslog.L().Warn("escrow_stake_error",
			zap.String("match_id", matchID),
			zap.Error(err),
		)
		return true
	}
	if !stakeMatches(deposited, m.Snapshot().Stake) {
		obslog.L().Warn("escrow_stake_mismatch",
			zap.String("match_id", matchID),
			zap.String("deposited_wei", deposited.String()),
		)
		d.reject(s, gamedto.ReasonGameNotFound, "error.escrow_stake_mismatch", nil)
		return false
	}
	return true
}

// stakeMatches compares a wei deposit against the listed stake in whole
// currency units, within float rounding.
func stakeMatches(depositedWei *big.Int, stake string) bool {
	want, err := strconv.ParseFloat(stake, 64)
	if err != nil || depositedWei == nil {
		return false
	}
	got, _ := new(big.Float).Quo(new(big.Float).SetInt(depositedWei), big.NewFloat(1e18)).Float64()
	return math.Abs(got-want) <= want*1e-9
}

func (d *Dispatcher) handleMove(s *session, raw json.RawMessage) {
	var payload gamedto.MakeMovePayload
	if !d.decode(s, raw, &payload) || !d.requireMatchID(s, payload.MatchID) {
		return
	}
	if payload.Move.From == "" || payload.Move.To == "" {
		d.reject(s, gamedto.ReasonInvalidPayload, "error.invalid_payload", nil)
		return
	}

	mv := engine.Move{
		From:      payload.Move.From,
		To:        payload.Move.To,
		Promotion: payload.Move.Promotion,
	}
	snap, final, err := d.registry.ApplyMove(payload.MatchID, s.player.Address, mv)
	if err != nil {
		d.rejectErr(s, err)
		return
	}

	d.broadcast(payload.MatchID, gamedto.EventGameState, snap)
	if final != nil {
		d.broadcast(payload.MatchID, gamedto.EventGameOver, gamedto.GameOverPayload{
			MatchID: final.MatchID,
			Winner:  final.Winner,
		})
		d.finalize(final)
	}
}

func (d *Dispatcher) handleInitState(s *session, raw json.RawMessage) {
	var payload gamedto.RequestInitStatePayload
	if !d.decode(s, raw, &payload) || !d.requireMatchID(s, payload.MatchID) {
		return
	}
	m, ok := d.registry.Get(payload.MatchID)
	if !ok {
		d.rejectErr(s, match.ErrGameNotFound)
		return
	}
	// rebind so a reconnected client receives subsequent broadcasts
	d.hub.Bind(s, payload.MatchID)
	d.unicast(s, gamedto.EventInitialGameState, m.Snapshot())
}

// finalize runs the post-completion side channels: archive the result, update
// standings, then retire the registry entry. The final snapshot has already
// been broadcast, so failures here never affect players mid-game.
func (d *Dispatcher) finalize(res *match.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if d.archive != nil {
		if err := d.archive.SaveResult(ctx, res); err != nil {
			obslog.L().Error("match_archive_error",
				zap.String("match_id", res.MatchID),
				zap.Error(err),
			)
		}
	}
	if d.board != nil {
		if err := d.recordStandings(ctx, res); err != nil {
			obslog.L().Error("leaderboard_error",
				zap.String("match_id", res.MatchID),
				zap.Error(err),
			)
		}
	}
	d.registry.Remove(res.MatchID)
}

func (d *Dispatcher) recordStandings(ctx context.Context, res *match.Result) error {
	white := leaderboard.PlayerRef{Address: res.White.Address, Username: res.White.Username}
	black := leaderboard.PlayerRef{Address: res.Black.Address, Username: res.Black.Username}
	if res.Winner == gamedto.WinnerDraw {
		return d.board.RecordDraw(ctx, white, black)
	}
	stake, err := strconv.ParseFloat(res.Stake, 64)
	if err != nil {
		return err
	}
	if res.Winner == res.White.Address {
		return d.board.RecordWin(ctx, white, black, stake)
	}
	return d.board.RecordWin(ctx, black, white, stake)
}

func (d *Dispatcher) decode(s *session, raw json.RawMessage, out any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, out) != nil {
		d.reject(s, gamedto.ReasonInvalidPayload, "error.invalid_payload", nil)
		return false
	}
	return true
}

func (d *Dispatcher) requireMatchID(s *session, id string) bool {
	if id == "" {
		d.reject(s, gamedto.ReasonInvalidPayload, "error.invalid_payload", nil)
		return false
	}
	return true
}

func (d *Dispatcher) unicast(s *session, eventType string, payload any) {
	env, err := gamedto.NewEnvelope(eventType, payload)
	if err != nil {
		obslog.L().Error("envelope_marshal_error", zap.String("type", eventType), zap.Error(err))
		return
	}
	s.enqueue(env)
}

func (d *Dispatcher) broadcast(matchID, eventType string, payload any) {
	env, err := gamedto.NewEnvelope(eventType, payload)
	if err != nil {
		obslog.L().Error("envelope_marshal_error", zap.String("type", eventType), zap.Error(err))
		return
	}
	d.hub.Broadcast(matchID, env)
}

func (d *Dispatcher) reject(s *session, reason, messageKey string, data map[string]any) {
	d.unicast(s, gamedto.EventError, gamedto.ErrorPayload{
		Reason:  reason,
		Message: d.catalog.Render(messageKey, data),
	})
}

func (d *Dispatcher) rejectErr(s *session, err error) {
	switch {
	case errors.Is(err, match.ErrGameNotFound):
		d.reject(s, gamedto.ReasonGameNotFound, "error.game_not_found", nil)
	case errors.Is(err, match.ErrGameFull):
		d.reject(s, gamedto.ReasonGameFull, "error.game_full", nil)
	case errors.Is(err, match.ErrGameNotActive):
		d.reject(s, gamedto.ReasonGameNotActive, "error.game_not_active", nil)
	case errors.Is(err, match.ErrNotYourTurn):
		d.reject(s, gamedto.ReasonNotYourTurn, "error.not_your_turn", nil)
	case errors.Is(err, match.ErrIllegalMove):
		d.reject(s, gamedto.ReasonIllegalMove, "error.illegal_move", nil)
	default:
		obslog.L().Error("event_internal_error", zap.String("session_id", s.id), zap.Error(err))
		d.reject(s, gamedto.ReasonInvalidPayload, "error.invalid_payload", nil)
	}
}

func creatorOf(s *session) match.Player {
	return match.Player{
		Address:  s.player.Address,
		Username: s.player.Username,
		Rating:   s.player.Rating,
		Earnings: s.player.Earnings,
	}
}
