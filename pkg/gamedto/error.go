package gamedto

// Machine-readable rejection reasons. Every error a client can receive maps
// to exactly one of these codes.
const (
	ReasonGameNotFound    = "GameNotFound"
	ReasonGameFull        = "GameFull"
	ReasonGameNotActive   = "GameNotActive"
	ReasonNotYourTurn     = "NotYourTurn"
	ReasonIllegalMove     = "IllegalMove"
	ReasonUnauthenticated = "Unauthenticated"
	ReasonInvalidPayload  = "InvalidPayload"
)

// ErrorPayload is always unicast to the offending connection, never
// broadcast. Message is advisory display text; Reason is the contract.
type ErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
