package websocket

// ActionUserVerified is pushed when a watched account completes verification.
const ActionUserVerified = "user.verified"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// VerifiedPayload identifies the account that was verified.
type VerifiedPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewUserVerifiedMessage builds the user.verified event.
func NewUserVerifiedMessage(id, email string) Message {
	return Message{Action: ActionUserVerified, Payload: VerifiedPayload{ID: id, Email: email}}
}
