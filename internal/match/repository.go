package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/stakemate/chess-server/pkg/gamedto"
)

// Archiver persists finished matches. A nil Archiver disables archiving.
type Archiver interface {
	SaveResult(ctx context.Context, res *Result) error
}

// Repository archives completed matches to Postgres. Live match state never
// touches the database; only terminal results do.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one finished match.
func (r *Repository) SaveResult(ctx context.Context, res *Result) error {
	if r == nil || r.db == nil || res == nil {
		return nil
	}

	outcome := outcomeToken(res)
	movesUCIRaw, _ := json.Marshal(res.MovesUCI)
	movesSANRaw, _ := json.Marshal(res.MovesSAN)
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO matches (
	    match_id, white_address, white_name, black_address, black_name,
	    stake, outcome, winner, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (match_id) DO UPDATE SET
	    outcome=EXCLUDED.outcome,
	    winner=EXCLUDED.winner,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		res.MatchID,
		res.White.Address, res.White.Username,
		res.Black.Address, res.Black.Username,
		res.Stake, outcome, res.Winner,
		string(movesUCIRaw), string(movesSANRaw), buildPGN(res),
		res.StartedAt, res.EndedAt, duration,
	)
	return err
}

func outcomeToken(res *Result) string {
	switch res.Winner {
	case res.White.Address:
		return "white"
	case res.Black.Address:
		return "black"
	case gamedto.WinnerDraw:
		return "draw"
	default:
		return ""
	}
}

func pgnResult(outcome string) string {
	switch outcome {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(res *Result) string {
	if res == nil {
		return ""
	}
	result := pgnResult(outcomeToken(res))
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	b.WriteString("[Event \"StakeMate\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.MatchID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(res.White.Username)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(res.Black.Username)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(res.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(res.MovesSAN[i])))
		if i+1 < len(res.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
