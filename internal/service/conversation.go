// Package service combines the history store, settings and chat session into
// the operations the local API and CLI expose.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/history"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/pkg/logger"
)

const (
	maxListLimit = 100
	// groupedLimit bounds how many conversations the sidebar groups.
	groupedLimit = 500
)

// ConversationStore is the history store as used by ConversationService.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetConversations(ctx context.Context, limit, offset int) ([]model.Conversation, error)
	SearchConversations(ctx context.Context, query string) ([]model.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
}

// OpenSession is the part of the chat session history operations touch.
type OpenSession interface {
	ConversationID() string
	ResetChat()
	LoadConversation(id string, stored []model.StoredMessage)
	Snapshot() model.ChatSnapshot
}

// ConversationService handles conversation history operations.
type ConversationService struct {
	store   ConversationStore
	session OpenSession
	logger  *logger.Logger
	events  EventPurger
	now     func() time.Time
}

// EventPurger removes mirrored events of a deleted conversation.
type EventPurger interface {
	PurgeConversation(ctx context.Context, conversationID string) error
}

// ConversationOption configures a ConversationService.
type ConversationOption func(*ConversationService)

// WithEventPurger purges a conversation's mirrored events when it is deleted.
func WithEventPurger(p EventPurger) ConversationOption {
	return func(s *ConversationService) { s.events = p }
}

// NewConversationService creates a new conversation service. session may be
// nil when no chat session is running, as in the CLI history commands.
func NewConversationService(store ConversationStore, session OpenSession, log *logger.Logger, opts ...ConversationOption) *ConversationService {
	s := &ConversationService{
		store:   store,
		session: session,
		logger:  log.Named("conversations"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of conversations, most recent first.
func (s *ConversationService) List(ctx context.Context, limit, offset int) (*model.ListConversationsResponse, error) {
	if limit <= 0 {
		limit = history.DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	convs, err := s.store.GetConversations(ctx, limit+1, offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(convs) > limit
	if hasMore {
		convs = convs[:limit]
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		HasMore:       hasMore,
	}, nil
}

// Search returns conversations whose title contains query.
func (s *ConversationService) Search(ctx context.Context, query string) ([]model.Conversation, error) {
	return s.store.SearchConversations(ctx, query)
}

// Grouped buckets recent conversations into today, yesterday and older.
func (s *ConversationService) Grouped(ctx context.Context) (model.GroupedConversationsResponse, error) {
	convs, err := s.store.GetConversations(ctx, groupedLimit, 0)
	if err != nil {
		return model.GroupedConversationsResponse{}, err
	}
	return history.GroupByRecency(convs, s.now()), nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// Messages returns the stored transcript of a conversation.
func (s *ConversationService) Messages(ctx context.Context, id string) (*model.ListMessagesResponse, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.store.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.ListMessagesResponse{ConversationID: id, Messages: msgs}, nil
}

// Rename sets a conversation title.
func (s *ConversationService) Rename(ctx context.Context, id, title string) (*model.Conversation, error) {
	if err := s.store.UpdateConversationTitle(ctx, id, title); err != nil {
		return nil, err
	}
	return s.store.GetConversation(ctx, id)
}

// Delete removes a conversation. If it is open in the session, the session
// is reset first so later replies are not written to a deleted conversation.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if s.session != nil && s.session.ConversationID() == id {
		s.session.ResetChat()
		s.logger.Info("reset session for deleted conversation", zap.String("conversation_id", id))
	}
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}

	// The mirror is best-effort; a failed purge leaves events to age out.
	if s.events != nil {
		if err := s.events.PurgeConversation(ctx, id); err != nil {
			s.logger.Warn("failed to purge conversation events",
				zap.String("conversation_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Open loads a stored conversation into the chat session.
func (s *ConversationService) Open(ctx context.Context, id string) (model.ChatSnapshot, error) {
	if s.session == nil {
		return model.ChatSnapshot{}, fmt.Errorf("no chat session to open conversation in")
	}

	resp, err := s.Messages(ctx, id)
	if err != nil {
		return model.ChatSnapshot{}, err
	}

	s.session.LoadConversation(id, resp.Messages)
	s.logger.Debug("conversation opened",
		zap.String("conversation_id", id),
		zap.Int("messages", len(resp.Messages)),
	)
	return s.session.Snapshot(), nil
}
