package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/qwikask/qwikask/internal/model"
)

const (
	// StreamName is the name of the session event stream.
	StreamName = "QWIKASK"

	// SubjectPrefix is the prefix for all session event subjects.
	SubjectPrefix = "qwikask"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the event stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    256 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Qwik Ask session events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event. Conversation ids are
// sanitised so they never add subject tokens.
func EventSubject(conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(conversationID), eventType)
}

// ConversationFilter returns the filter subject for all events of a conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(conversationID))
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishEvent publishes an event to JetStream and returns its stream sequence.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.ConversationID, event.Type), data,
		jetstream.WithMsgID(event.ID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// PurgeConversation removes every stored event of a conversation.
func (m *StreamManager) PurgeConversation(ctx context.Context, conversationID string) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(ConversationFilter(conversationID))); err != nil {
		return fmt.Errorf("failed to purge conversation events: %w", err)
	}
	return nil
}

// Publish implements the session event sink.
func (m *StreamManager) Publish(ctx context.Context, event *model.SessionEvent) error {
	_, err := m.PublishEvent(ctx, event)
	return err
}

// NopSink discards events. It is used when no NATS URL is configured.
type NopSink struct{}

// Publish does nothing.
func (NopSink) Publish(context.Context, *model.SessionEvent) error { return nil }

// PurgeConversation does nothing.
func (NopSink) PurgeConversation(context.Context, string) error { return nil }
