package gamedto

// Player is the identity bound to a connection for the session's duration.
// Rating and earnings are carried for clients but not computed here.
type Player struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Earnings string `json:"earnings"`
}

// Players holds the two match slots. Black is nil until someone joins.
type Players struct {
	White *Player `json:"white"`
	Black *Player `json:"black"`
}

// Match lifecycle status values as they appear on the wire.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// WinnerDraw marks a drawn match in Snapshot.Winner.
const WinnerDraw = "draw"

// Snapshot is the serializable view of a match broadcast to clients. The
// position travels as FEN; the internal rules-engine handle never does.
type Snapshot struct {
	MatchID     string   `json:"matchId"`
	Players     Players  `json:"players"`
	Stake       string   `json:"stake"`
	Status      string   `json:"status"`
	Winner      string   `json:"winner,omitempty"`
	MoveLog     []string `json:"moveLog"`
	Position    string   `json:"position"`
	CheckedSide string   `json:"checkedSide,omitempty"`
}
