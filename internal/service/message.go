package service

import (
	"context"
	"errors"
	"strings"

	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/internal/settings"
	"github.com/qwikask/qwikask/pkg/logger"
)

// ErrNotAccepted is returned when the session ignores a message because it
// is blank or a reply is already streaming.
var ErrNotAccepted = errors.New("message not accepted")

// ChatSession is the chat state machine driven by ChatService.
type ChatSession interface {
	SendMessage(text string, cfg llm.Config, systemPrompt string) bool
	Snapshot() model.ChatSnapshot
	Subscribe() (<-chan model.ChatSnapshot, func())
	ResetChat()
	CopyLastResponse() bool
	DismissError()
}

// SettingsSource provides the settings in effect for the next send.
type SettingsSource interface {
	Get() settings.AppSettings
}

// TokenCallback receives each new piece of the streamed reply.
type TokenCallback func(delta string)

// ChatService sends messages with the user's current settings.
type ChatService struct {
	session  ChatSession
	settings SettingsSource
	logger   *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(session ChatSession, source SettingsSource, log *logger.Logger) *ChatService {
	return &ChatService{
		session:  session,
		settings: source,
		logger:   log.Named("chat"),
	}
}

// Send starts a reply using the settings in effect now. Changing settings
// mid-stream affects only later sends.
func (s *ChatService) Send(content string) bool {
	current := s.settings.Get()
	return s.session.SendMessage(content, current.LLM.ProviderConfig(), current.LLM.SystemPrompt)
}

// Ask sends content and blocks until the reply finishes, passing streamed
// text to onDelta as it arrives. It returns the full reply, or the
// user-facing error message as an error.
func (s *ChatService) Ask(ctx context.Context, content string, onDelta TokenCallback) (string, error) {
	updates, stop := s.session.Subscribe()
	defer stop()
	<-updates

	if !s.Send(content) {
		if msg := s.session.Snapshot().Error; msg != "" {
			return "", errors.New(msg)
		}
		return "", ErrNotAccepted
	}

	var printed string
	for {
		select {
		case <-ctx.Done():
			s.session.ResetChat()
			return "", ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return "", ErrNotAccepted
			}

			reply := lastAssistant(snap.Messages)
			if len(reply) > len(printed) && strings.HasPrefix(reply, printed) {
				if onDelta != nil {
					onDelta(reply[len(printed):])
				}
				printed = reply
			}

			if snap.Streaming {
				continue
			}
			if snap.Error != "" {
				return reply, errors.New(snap.Error)
			}
			return reply, nil
		}
	}
}

func lastAssistant(msgs []model.Message) string {
	if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
		return msgs[n-1].Content
	}
	return ""
}

// Snapshot returns the session state.
func (s *ChatService) Snapshot() model.ChatSnapshot {
	return s.session.Snapshot()
}

// Subscribe streams session snapshots.
func (s *ChatService) Subscribe() (<-chan model.ChatSnapshot, func()) {
	return s.session.Subscribe()
}

// Reset starts a new conversation.
func (s *ChatService) Reset() {
	s.session.ResetChat()
}

// CopyLastResponse copies the latest reply to the clipboard.
func (s *ChatService) CopyLastResponse() bool {
	return s.session.CopyLastResponse()
}

// DismissError clears the displayed error.
func (s *ChatService) DismissError() {
	s.session.DismissError()
}
