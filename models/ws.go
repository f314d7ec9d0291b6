package models

// WSMessage is the envelope for every event pushed over the WebSocket.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSTypeWelcome           = "welcome"
	WSTypeReminder          = "reminder"
	WSTypeCollectionChanged = "collection_changed"
)

// ReminderNotification is the payload of a WSTypeReminder event: the rendered
// notification plus the id the client should open on tap.
type ReminderNotification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	TargetID string `json:"target_id"`
}
