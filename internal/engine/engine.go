// Package engine is the move-legality boundary over the chess rules library.
// Everything above it works with plain strings (UCI moves, FEN positions) and
// result values; illegal input is reported, never thrown.
package engine

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Side identifies a board color on the wire. The zero value means neither.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
	SideNone  Side = ""
)

// Move is a candidate half-move in coordinate form. Promotion is a single
// piece letter (q, r, b, n); empty means default to queen when the move is a
// promotion.
type Move struct {
	From      string
	To        string
	Promotion string
}

// Result reports the outcome of applying one move to a position.
type Result struct {
	Legal       bool
	UCI         string
	SAN         string
	FEN         string
	Turn        Side // side to move in the resulting position
	CheckedSide Side
	Checkmate   bool
	Draw        bool
}

// StartFEN is the standard initial position.
func StartFEN() string {
	return nchess.NewGame().FEN()
}

// reconstruct replays a UCI move list from the standard start position.
// Returns nil when the history itself is invalid.
func reconstruct(history []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range history {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

// Apply validates mv against the position reached by history and, when legal,
// reports the resulting position and terminal flags. A missing promotion
// piece is retried as a queen promotion before the move is ruled illegal.
func Apply(history []string, mv Move) Result {
	game := reconstruct(history)
	if game == nil {
		return Result{}
	}
	pos := game.Position()

	uci := normalizeUCI(mv)
	if uci == "" {
		return Result{}
	}
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		if mv.Promotion != "" {
			return Result{}
		}
		uci += "q"
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return Result{}
		}
	}

	moves := game.Moves()
	last := moves[len(moves)-1]
	// Encode against the pre-move position; the SAN suffix carries the
	// check/mate marker computed by the library.
	san := nchess.AlgebraicNotation{}.Encode(pos, last)

	res := Result{
		Legal: true,
		UCI:   uci,
		SAN:   san,
		FEN:   game.FEN(),
		Turn:  colorFrom(game.Position().Turn()),
	}
	if strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#") {
		res.CheckedSide = res.Turn
	}
	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		res.Checkmate = true
	case nchess.Draw:
		res.Draw = true
	}
	return res
}

// Replay returns the FEN reached by a UCI move list, and whether the list was
// a valid game from the start position.
func Replay(history []string) (string, bool) {
	game := reconstruct(history)
	if game == nil {
		return "", false
	}
	return game.FEN(), true
}

// TurnOf reports the side to move after history. SideNone means the history
// does not reconstruct.
func TurnOf(history []string) Side {
	game := reconstruct(history)
	if game == nil {
		return SideNone
	}
	return colorFrom(game.Position().Turn())
}

// LegalTargets lists destination squares for the piece on from, in the
// position reached by history. Empty for unknown squares or broken history.
func LegalTargets(history []string, from string) []string {
	game := reconstruct(history)
	if game == nil {
		return nil
	}
	from = strings.ToLower(strings.TrimSpace(from))
	var targets []string
	for _, mv := range game.ValidMoves() {
		if mv.S1().String() == from {
			targets = append(targets, mv.S2().String())
		}
	}
	return targets
}

func normalizeUCI(mv Move) string {
	from := strings.ToLower(strings.TrimSpace(mv.From))
	to := strings.ToLower(strings.TrimSpace(mv.To))
	if len(from) != 2 || len(to) != 2 {
		return ""
	}
	promo := normalizePromotion(mv.Promotion)
	if mv.Promotion != "" && promo == "" {
		return ""
	}
	return from + to + promo
}

func normalizePromotion(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "":
		return ""
	case "q", "queen":
		return "q"
	case "r", "rook":
		return "r"
	case "b", "bishop":
		return "b"
	case "n", "knight":
		return "n"
	default:
		return ""
	}
}

func colorFrom(c nchess.Color) Side {
	if c == nchess.White {
		return SideWhite
	}
	return SideBlack
}
