package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwikask/qwikask/internal/history"
	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/internal/session"
	"github.com/qwikask/qwikask/internal/settings"
	"github.com/qwikask/qwikask/pkg/logger"
)

// echoClient streams the last user message back in two pieces.
type echoClient struct {
	fail string
}

func (c echoClient) StreamChat(_ context.Context, _ llm.Config, messages []llm.ChatMessage, _ string, cb llm.StreamCallbacks) {
	last := messages[len(messages)-1].Content
	half := len(last) / 2
	cb.OnToken("echo: " + last[:half])
	if c.fail != "" {
		cb.OnError(c.fail)
		return
	}
	cb.OnToken(last[half:])
	cb.OnComplete()
}

func (echoClient) SimpleCompletion(context.Context, llm.Config, string) string { return "Echo Chat" }
func (echoClient) Name() string                                                { return "echo" }
func (echoClient) Models() []string                                            { return nil }

type echoResolver struct{ client llm.Client }

func (r echoResolver) Resolve(p llm.Provider) (llm.Client, error) {
	if !p.Valid() {
		return nil, llm.ErrUnknownProvider
	}
	return r.client, nil
}

type fixture struct {
	store    *history.Store
	settings *settings.Store
	session  *session.Session
	chat     *ChatService
	convs    *ConversationService
}

func newFixture(t *testing.T, client llm.Client) *fixture {
	t.Helper()
	log := logger.NewNop()
	dir := t.TempDir()

	store, err := history.Open(t.Context(), filepath.Join(dir, "history.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	prefs, err := settings.Open(filepath.Join(dir, settings.FileName), log)
	require.NoError(t, err)

	resolver := echoResolver{client: client}
	persister := session.NewPersister(store, nil, time.Second, log)
	s := session.New(resolver, llm.NewTitleGenerator(resolver, time.Second, log), persister, nil, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
		persister.Close()
	})

	return &fixture{
		store:    store,
		settings: prefs,
		session:  s,
		chat:     NewChatService(s, prefs, log),
		convs:    NewConversationService(store, s, log),
	}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Wait(t.Context()))
}

func TestAskStreamsAndPersists(t *testing.T) {
	f := newFixture(t, echoClient{})

	var deltas []string
	reply, err := f.chat.Ask(t.Context(), "hello world", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "echo: hello world", reply)
	assert.Equal(t, "echo: hello world", strings.Join(deltas, ""))

	f.settle(t)

	list, err := f.convs.List(t.Context(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	assert.False(t, list.HasMore)
	assert.Equal(t, "Echo Chat", list.Conversations[0].Title)

	msgs, err := f.convs.Messages(t.Context(), list.Conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, model.RoleUser, msgs.Messages[0].Role)
	assert.Equal(t, "echo: hello world", msgs.Messages[1].Content)
}

func TestAskReturnsStreamError(t *testing.T) {
	f := newFixture(t, echoClient{fail: "Stream interrupted"})

	reply, err := f.chat.Ask(t.Context(), "hello world", nil)
	assert.EqualError(t, err, "Stream interrupted")
	assert.Equal(t, "echo: hello", reply)
}

func TestAskUnknownProvider(t *testing.T) {
	f := newFixture(t, echoClient{})
	current := f.settings.Get()
	current.LLM.Provider = "bogus"
	// Bypass validation to simulate a settings file edited by hand.
	f.chat = NewChatService(f.session, staticSettings{current}, logger.NewNop())

	_, err := f.chat.Ask(t.Context(), "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM provider")
}

func TestAskBlank(t *testing.T) {
	f := newFixture(t, echoClient{})
	_, err := f.chat.Ask(t.Context(), "   ", nil)
	assert.ErrorIs(t, err, ErrNotAccepted)
}

type staticSettings struct{ s settings.AppSettings }

func (s staticSettings) Get() settings.AppSettings { return s.s }

func TestListPaging(t *testing.T) {
	f := newFixture(t, echoClient{})
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.store.CreateConversation(t.Context(), id, "t-"+id))
	}

	page, err := f.convs.List(t.Context(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 2)
	assert.True(t, page.HasMore)

	page, err = f.convs.List(t.Context(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 1)
	assert.False(t, page.HasMore)
}

func TestOpenAndDeleteOpenConversation(t *testing.T) {
	f := newFixture(t, echoClient{})
	_, err := f.chat.Ask(t.Context(), "first question", nil)
	require.NoError(t, err)
	f.settle(t)
	id := f.session.ConversationID()
	require.NotEmpty(t, id)

	f.chat.Reset()
	snap, err := f.convs.Open(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ConversationID)
	assert.Len(t, snap.Messages, 2)

	require.NoError(t, f.convs.Delete(t.Context(), id))
	assert.Empty(t, f.session.ConversationID())
	assert.False(t, f.session.HasMessages())

	_, err = f.convs.Get(t.Context(), id)
	assert.True(t, errors.Is(err, history.ErrNotFound))
	_, err = f.convs.Open(t.Context(), id)
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestDeleteOtherConversationKeepsSession(t *testing.T) {
	f := newFixture(t, echoClient{})
	require.NoError(t, f.store.CreateConversation(t.Context(), "other", "Other"))
	_, err := f.chat.Ask(t.Context(), "keep me", nil)
	require.NoError(t, err)

	require.NoError(t, f.convs.Delete(t.Context(), "other"))
	assert.True(t, f.session.HasMessages())
}

func TestRenameAndGrouped(t *testing.T) {
	f := newFixture(t, echoClient{})
	require.NoError(t, f.store.CreateConversation(t.Context(), "c1", "Old"))

	conv, err := f.convs.Rename(t.Context(), "c1", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", conv.Title)

	_, err = f.convs.Rename(t.Context(), "missing", "x")
	assert.ErrorIs(t, err, history.ErrNotFound)

	groups, err := f.convs.Grouped(t.Context())
	require.NoError(t, err)
	require.Len(t, groups.Today, 1)
	assert.Empty(t, groups.Yesterday)
	assert.Empty(t, groups.Older)

	found, err := f.convs.Search(t.Context(), "ne")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestOpenWithoutSession(t *testing.T) {
	f := newFixture(t, echoClient{})
	convs := NewConversationService(f.store, nil, logger.NewNop())
	_, err := convs.Open(t.Context(), "c1")
	assert.Error(t, err)
}

type recordingPurger struct {
	mu     sync.Mutex
	purged []string
	err    error
}

func (p *recordingPurger) PurgeConversation(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purged = append(p.purged, id)
	return p.err
}

func TestDeletePurgesMirroredEvents(t *testing.T) {
	f := newFixture(t, echoClient{})
	purger := &recordingPurger{}
	convs := NewConversationService(f.store, f.session, logger.NewNop(), WithEventPurger(purger))

	require.NoError(t, f.store.CreateConversation(t.Context(), "c1", "One"))
	require.NoError(t, convs.Delete(t.Context(), "c1"))
	assert.Equal(t, []string{"c1"}, purger.purged)

	// A missing conversation is not purged.
	assert.ErrorIs(t, convs.Delete(t.Context(), "c1"), history.ErrNotFound)
	assert.Equal(t, []string{"c1"}, purger.purged)
}

func TestDeleteIgnoresPurgeFailure(t *testing.T) {
	f := newFixture(t, echoClient{})
	purger := &recordingPurger{err: errors.New("stream unavailable")}
	convs := NewConversationService(f.store, f.session, logger.NewNop(), WithEventPurger(purger))

	require.NoError(t, f.store.CreateConversation(t.Context(), "c1", "One"))
	require.NoError(t, convs.Delete(t.Context(), "c1"))

	_, err := convs.Get(t.Context(), "c1")
	assert.ErrorIs(t, err, history.ErrNotFound)
}
