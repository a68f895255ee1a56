package gamedto

// CreateGamePayload opens a new match with the sender as white.
type CreateGamePayload struct {
	Stake string `json:"stake"`
}

// JoinGamePayload binds the sender to the black slot of an open match.
type JoinGamePayload struct {
	MatchID string `json:"matchId"`
}

// MovePayload is a half-move in coordinate form. Promotion is optional and
// defaults to queen when omitted.
type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MakeMovePayload submits a move for the sender's side.
type MakeMovePayload struct {
	MatchID string      `json:"matchId"`
	Move    MovePayload `json:"move"`
}

// RequestInitStatePayload asks for the current snapshot, used by reconnecting
// clients to resynchronize without replaying moves.
type RequestInitStatePayload struct {
	MatchID string `json:"matchId"`
}

// GameCreatedPayload acknowledges createGame to the originating connection.
type GameCreatedPayload struct {
	MatchID string `json:"matchId"`
}

// GameOverPayload is broadcast once when a match reaches a terminal state.
// Winner is an address, or WinnerDraw.
type GameOverPayload struct {
	MatchID string `json:"matchId"`
	Winner  string `json:"winner"`
}
