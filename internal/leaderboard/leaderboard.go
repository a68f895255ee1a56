// Package leaderboard keeps cumulative player standings in Redis: net
// earnings, games played, and wins. It is an optional side channel; match
// play never depends on it.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stakemate/chess-server/internal/obslog"
)

const (
	keyEarnings     = "lb:earnings"
	keyPlayerPrefix = "lb:player:"
)

// PlayerRef identifies one participant of a finished match.
type PlayerRef struct {
	Address  string
	Username string
}

// Entry is one leaderboard row, ranked by earnings.
type Entry struct {
	Address     string  `json:"address"`
	Username    string  `json:"username"`
	Earnings    float64 `json:"earnings"`
	GamesPlayed int     `json:"gamesPlayed"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"winRate"`
}

type Board struct {
	rdb *redis.Client
}

func New(redisURL string) (*Board, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for leaderboard")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Board{rdb: rdb}, nil
}

func (b *Board) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// RecordWin credits the winner with the loser's stake as net profit and
// counts a game for both sides.
func (b *Board) RecordWin(ctx context.Context, winner, loser PlayerRef, stake float64) error {
	if b == nil || b.rdb == nil {
		return nil
	}
	pipe := b.rdb.TxPipeline()
	pipe.ZIncrBy(ctx, keyEarnings, stake, winner.Address)
	pipe.ZIncrBy(ctx, keyEarnings, -stake, loser.Address)
	b.touchPlayer(ctx, pipe, winner, true)
	b.touchPlayer(ctx, pipe, loser, false)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	obslog.L().Info("leaderboard_win",
		zap.String("winner", winner.Address),
		zap.String("loser", loser.Address),
		zap.Float64("stake", stake),
	)
	return nil
}

// RecordDraw counts a game for both sides with no earnings movement.
func (b *Board) RecordDraw(ctx context.Context, white, black PlayerRef) error {
	if b == nil || b.rdb == nil {
		return nil
	}
	pipe := b.rdb.TxPipeline()
	pipe.ZIncrBy(ctx, keyEarnings, 0, white.Address)
	pipe.ZIncrBy(ctx, keyEarnings, 0, black.Address)
	b.touchPlayer(ctx, pipe, white, false)
	b.touchPlayer(ctx, pipe, black, false)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *Board) touchPlayer(ctx context.Context, pipe redis.Pipeliner, p PlayerRef, won bool) {
	key := keyPlayerPrefix + p.Address
	pipe.HSet(ctx, key, "username", p.Username)
	pipe.HIncrBy(ctx, key, "games", 1)
	if won {
		pipe.HIncrBy(ctx, key, "wins", 1)
	}
}

// Earnings reports a single player's net earnings. Unknown players are zero.
func (b *Board) Earnings(ctx context.Context, address string) (float64, error) {
	if b == nil || b.rdb == nil {
		return 0, nil
	}
	score, err := b.rdb.ZScore(ctx, keyEarnings, address).Result()
	if err == redis.Nil {
		return 0, nil
	}
	return score, err
}

// Top returns the n highest earners with their per-player stats.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if b == nil || b.rdb == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 10
	}
	ranked, err := b.rdb.ZRevRangeWithScores(ctx, keyEarnings, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(ranked))
	for _, z := range ranked {
		addr, _ := z.Member.(string)
		entry := Entry{Address: addr, Earnings: z.Score}
		stats, err := b.rdb.HGetAll(ctx, keyPlayerPrefix+addr).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		entry.Username = stats["username"]
		entry.GamesPlayed, _ = strconv.Atoi(stats["games"])
		entry.Wins, _ = strconv.Atoi(stats["wins"])
		if entry.GamesPlayed > 0 {
			entry.WinRate = float64(entry.Wins) / float64(entry.GamesPlayed)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
