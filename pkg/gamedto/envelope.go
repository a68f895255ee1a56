package gamedto

import "encoding/json"

// Event type tags carried in the envelope. Inbound types are sent by clients,
// outbound types by the server.
const (
	// inbound
	EventCreateGame       = "createGame"
	EventJoinGame         = "joinGame"
	EventMakeMove         = "makeMove"
	EventRequestInitState = "requestInitialGameState"

	// outbound
	EventGameCreated      = "gameCreated"
	EventGameState        = "gameState"
	EventInitialGameState = "initialGameState"
	EventGameOver         = "gameOver"
	EventError            = "error"
)

// Envelope wraps every wire message in a tagged variant. Data is decoded
// against the payload struct matching Type; anything that does not fit is
// rejected as InvalidPayload by the dispatcher.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal failures are
// programmer errors on server-owned types, so they surface as an error for
// the caller to log rather than panic.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Data: raw}, nil
}
