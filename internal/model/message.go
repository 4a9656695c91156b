package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a transcript role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one entry of the in-memory transcript.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch ms
}

// StoredMessage is a message row of the history store.
type StoredMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"` // epoch ms
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse reports whether the session accepted the message.
type SendMessageResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	ConversationID string          `json:"conversation_id"`
	Messages       []StoredMessage `json:"messages"`
}

// ChatSnapshot is the observable state of the chat session.
type ChatSnapshot struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Messages       []Message `json:"messages"`
	Streaming      bool      `json:"streaming"`
	Error          string    `json:"error,omitempty"`
	HasMessages    bool      `json:"has_messages"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp int64 `json:"timestamp"`
}
