package model

// EventType represents the type of session event.
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventMessagePersisted    EventType = "message_persisted"
	EventTitleUpdated        EventType = "title_updated"
	EventStreamFailed        EventType = "stream_failed"
)

// SessionEvent is a best-effort notification about session activity.
type SessionEvent struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Type           EventType         `json:"type"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      int64             `json:"created_at"`
}
