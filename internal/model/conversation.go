// Package model defines data structures shared by the launcher backend.
package model

// Conversation is a durable, titled grouping of messages.
// CreatedAt and UpdatedAt are Unix epoch milliseconds; UpdatedAt drives recency.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateConversationRequest is the request to rename a conversation.
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"has_more"`
}

// GroupedConversationsResponse buckets conversations by recency.
type GroupedConversationsResponse struct {
	Today     []Conversation `json:"today"`
	Yesterday []Conversation `json:"yesterday"`
	Older     []Conversation `json:"older"`
}
