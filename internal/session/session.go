// Package session holds the single active chat conversation and drives a
// provider stream into it.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/pkg/logger"
)

// provisionalTitleRunes is how much of the first message names a new conversation.
const provisionalTitleRunes = 50

// TitleGenerator names a conversation from its first user message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, cfg llm.Config, userMessage string) string
}

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator overrides how conversation and message ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// Session is the chat state machine: idle, or streaming exactly one reply.
//
// Every stream is tagged with the generation current when it started. Reset
// and load bump the generation and cancel the stream, and callbacks from an
// older generation are dropped, so an abandoned reply never lands in a newer
// transcript.
type Session struct {
	resolver  llm.Resolver
	titles    TitleGenerator
	persister *Persister
	clipboard Clipboard
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	active atomic.Int32

	mu             sync.Mutex
	messages       []model.Message
	streaming      bool
	errMsg         string
	conversationID string
	generation     uint64
	cancelStream   context.CancelFunc
	subscribers    map[chan model.ChatSnapshot]struct{}
}

// New creates the session.
func New(resolver llm.Resolver, titles TitleGenerator, persister *Persister, clip Clipboard, log *logger.Logger, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		resolver:    resolver,
		titles:      titles,
		persister:   persister,
		clipboard:   clip,
		logger:      log.Named("session"),
		now:         time.Now,
		newID:       newID,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[chan model.ChatSnapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SendMessage starts a reply to text. It returns false without changing
// anything when text is blank or a reply is already streaming. An unknown
// provider also returns false and sets the error.
func (s *Session) SendMessage(text string, cfg llm.Config, systemPrompt string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming {
		return false
	}

	client, err := s.resolver.Resolve(cfg.Provider)
	if err != nil {
		s.logger.Error("cannot send message", zap.Error(err))
		s.errMsg = err.Error()
		s.publishLocked()
		return false
	}

	if len(s.messages) == 0 {
		s.conversationID = s.newID()
		s.persister.CreateConversation(s.conversationID, provisionalTitle(text))
	}
	convID := s.conversationID

	user := model.Message{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: s.now().UnixMilli(),
	}
	s.messages = append(s.messages, user)
	s.persister.AddMessage(user.ID, convID, user.Role, user.Content)

	history := make([]llm.ChatMessage, len(s.messages))
	for i, m := range s.messages {
		history[i] = llm.ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	placeholder := model.Message{
		ID:        s.newID(),
		Role:      model.RoleAssistant,
		Timestamp: s.now().UnixMilli(),
	}
	s.messages = append(s.messages, placeholder)
	s.errMsg = ""
	s.streaming = true

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelStream = cancel
	current := &turn{
		session:     s,
		generation:  s.generation,
		replyID:     placeholder.ID,
		convID:      convID,
		cfg:         cfg,
		userMessage: text,
	}
	s.publishLocked()

	s.spawn(func() {
		defer cancel()

		var reply strings.Builder
		client.StreamChat(ctx, cfg, history, systemPrompt, llm.StreamCallbacks{
			OnToken: func(token string) {
				reply.WriteString(token)
				current.setReply(reply.String())
			},
			OnComplete: current.complete,
			OnError:    current.fail,
		})
	})

	return true
}

// turn is one send; its methods apply stream callbacks to the session.
type turn struct {
	session     *Session
	generation  uint64
	replyID     string
	convID      string
	cfg         llm.Config
	userMessage string
}

// currentLocked reports whether the turn still owns the transcript.
func (t *turn) currentLocked() bool {
	return t.session.generation == t.generation
}

func (t *turn) setReply(content string) {
	s := t.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.currentLocked() {
		return
	}
	if i := s.indexLocked(t.replyID); i >= 0 {
		s.messages[i].Content = content
		s.publishLocked()
	}
}

func (t *turn) complete() {
	s := t.session
	s.mu.Lock()
	if !t.currentLocked() {
		s.mu.Unlock()
		return
	}

	s.streaming = false
	s.cancelStream = nil

	var reply model.Message
	if i := s.indexLocked(t.replyID); i >= 0 {
		reply = s.messages[i]
	}
	firstExchange := len(s.messages) == 2
	s.publishLocked()
	s.mu.Unlock()

	if reply.Content != "" {
		s.persister.AddMessage(reply.ID, t.convID, model.RoleAssistant, reply.Content)
	}

	if firstExchange && s.titles != nil {
		s.spawn(func() {
			if title := s.titles.GenerateTitle(s.ctx, t.cfg, t.userMessage); title != "" {
				s.persister.UpdateTitle(t.convID, title)
			}
		})
	}
}

func (t *turn) fail(message string) {
	s := t.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.currentLocked() {
		return
	}

	s.streaming = false
	s.cancelStream = nil
	s.errMsg = message
	if i := s.indexLocked(t.replyID); i >= 0 && s.messages[i].Content == "" {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
	s.publishLocked()

	s.logger.Warn("reply failed", zap.String("conversation_id", t.convID), zap.String("error", message))
	s.persister.StreamFailed(t.convID, message)
}

// ResetChat clears the transcript, error, streaming flag and conversation id,
// abandoning any reply in flight.
func (s *Session) ResetChat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.publishLocked()
}

func (s *Session) resetLocked() {
	s.generation++
	if s.cancelStream != nil {
		s.cancelStream()
		s.cancelStream = nil
	}
	s.messages = nil
	s.errMsg = ""
	s.streaming = false
	s.conversationID = ""
}

// LoadConversation replaces the session with a stored conversation.
func (s *Session) LoadConversation(id string, stored []model.StoredMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.conversationID = id
	s.messages = make([]model.Message, len(stored))
	for i, m := range stored {
		s.messages[i] = model.Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		}
	}
	s.publishLocked()
}

// CopyLastResponse copies the latest assistant reply to the clipboard.
func (s *Session) CopyLastResponse() bool {
	s.mu.Lock()
	var content string
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == model.RoleAssistant {
			content = s.messages[i].Content
			break
		}
	}
	s.mu.Unlock()

	if content == "" || s.clipboard == nil {
		return false
	}
	if err := s.clipboard.WriteText(content); err != nil {
		s.logger.Warn("failed to copy response", zap.Error(err))
		return false
	}
	return true
}

// DismissError clears the displayed error.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errMsg == "" {
		return
	}
	s.errMsg = ""
	s.publishLocked()
}

// Snapshot returns the observable state.
func (s *Session) Snapshot() model.ChatSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []model.Message {
	return s.Snapshot().Messages
}

// IsStreaming reports whether a reply is in flight.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Error returns the message of the last failed reply, if not dismissed.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// HasMessages reports whether the transcript is non-empty.
func (s *Session) HasMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) > 0
}

// ConversationID returns the durable id of the open conversation, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Slow readers only see the latest state. Call the returned func to stop.
func (s *Session) Subscribe() (<-chan model.ChatSnapshot, func()) {
	ch := make(chan model.ChatSnapshot, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// spawn runs fn in the background and counts it for Wait.
func (s *Session) spawn(fn func()) {
	s.tasks.Add(1)
	s.active.Add(1)
	go func() {
		defer s.tasks.Done()
		defer s.active.Add(-1)
		fn()
	}()
}

// Wait blocks until in-flight replies, title generation and queued writes
// finish. An idle session returns nil even when ctx is already done.
func (s *Session) Wait(ctx context.Context) error {
	if s.active.Load() == 0 && s.persister.Idle() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.persister.Flush(ctx)
}

// Close abandons any reply in flight and waits for background work.
func (s *Session) Close(ctx context.Context) error {
	s.ResetChat()
	s.cancel()
	return s.Wait(ctx)
}

func (s *Session) indexLocked(id string) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) snapshotLocked() model.ChatSnapshot {
	msgs := make([]model.Message, len(s.messages))
	copy(msgs, s.messages)
	return model.ChatSnapshot{
		ConversationID: s.conversationID,
		Messages:       msgs,
		Streaming:      s.streaming,
		Error:          s.errMsg,
		HasMessages:    len(msgs) > 0,
	}
}

// publishLocked replaces whatever snapshot a subscriber has not read yet.
func (s *Session) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func provisionalTitle(text string) string {
	if utf8.RuneCountInString(text) <= provisionalTitleRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:provisionalTitleRunes]))
}
