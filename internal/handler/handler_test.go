package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/internal/session"
	"github.com/qwikask/qwikask/internal/settings"
	"github.com/qwikask/qwikask/pkg/logger"
)

// gatedClient replies "pong" once release is closed.
type gatedClient struct {
	release chan struct{}
}

func (c *gatedClient) StreamChat(ctx context.Context, _ llm.Config, _ []llm.ChatMessage, _ string, cb llm.StreamCallbacks) {
	select {
	case <-c.release:
	case <-ctx.Done():
		return
	}
	cb.OnToken("po")
	cb.OnToken("ng")
	cb.OnComplete()
}

func (c *gatedClient) SimpleCompletion(context.Context, llm.Config, string) string { return "Ping" }
func (c *gatedClient) Name() string                                                { return "gated" }
func (c *gatedClient) Models() []string                                            { return nil }

type gatedResolver struct{ client llm.Client }

func (r gatedResolver) Resolve(p llm.Provider) (llm.Client, error) {
	if !p.Valid() {
		return nil, llm.ErrUnknownProvider
	}
	return r.client, nil
}

type memClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *memClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *memClipboard) contents() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

type api struct {
	server    *httptest.Server
	client    *gatedClient
	session   *session.Session
	store     *history.Store
	settings  *settings.Store
	clipboard *memClipboard
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.NewNop()
	dir := t.TempDir()

	store, err := history.Open(t.Context(), filepath.Join(dir, "history.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	prefs, err := settings.Open(filepath.Join(dir, settings.FileName), log)
	require.NoError(t, err)

	client := &gatedClient{release: make(chan struct{})}
	resolver := gatedResolver{client: client}
	clip := &memClipboard{}
	persister := session.NewPersister(store, nil, time.Second, log)
	s := session.New(resolver, llm.NewTitleGenerator(resolver, time.Second, log), persister, clip, log)

	router := NewRouter(Deps{
		Chat:          service.NewChatService(s, prefs, log),
		Conversations: service.NewConversationService(store, s, log),
		Settings:      prefs,
		Catalog:       llm.NewRegistry(llm.DefaultEndpoints(), http.DefaultClient, log),
		DB:            store,
		Heartbeat:     time.Hour,
		Logger:        log,
	})
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
		persister.Close()
	})

	return &api{server: srv, client: client, session: s, store: store, settings: prefs, clipboard: clip}
}

func (a *api) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (a *api) finishReply(t *testing.T) {
	t.Helper()
	close(a.client.release)
	require.NoError(t, a.session.Wait(t.Context()))
}

func TestHealthAndReady(t *testing.T) {
	a := newAPI(t)

	resp := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "disabled", body["events"])

	resp = a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendWhileStreamingIsRejected(t *testing.T) {
	a := newAPI(t)

	resp := a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "ping"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, decode[model.SendMessageResponse](t, resp).Accepted)

	resp = a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, decode[model.SendMessageResponse](t, resp).Accepted)

	snap := decode[model.ChatSnapshot](t, a.do(t, http.MethodGet, "/api/v1/chat", nil))
	assert.True(t, snap.Streaming)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "ping", snap.Messages[0].Content)

	a.finishReply(t)

	snap = decode[model.ChatSnapshot](t, a.do(t, http.MethodGet, "/api/v1/chat", nil))
	assert.False(t, snap.Streaming)
	assert.Equal(t, "pong", snap.Messages[1].Content)
}

func TestSendValidation(t *testing.T) {
	a := newAPI(t)

	resp := a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, a.server.URL+"/api/v1/chat/messages", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestEventsFeed(t *testing.T) {
	a := newAPI(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/api/v1/chat/events", nil)
	require.NoError(t, err)
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan model.ChatSnapshot, 64)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				var snap model.ChatSnapshot
				if json.Unmarshal([]byte(data), &snap) == nil {
					events <- snap
				}
			}
		}
	}()

	first := <-events
	assert.False(t, first.HasMessages)

	a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "ping"})
	close(a.client.release)

	for snap := range events {
		if !snap.Streaming && snap.HasMessages {
			require.Len(t, snap.Messages, 2)
			assert.Equal(t, "pong", snap.Messages[1].Content)
			return
		}
	}
	t.Fatal("feed ended before the reply completed")
}

func TestCopyResetAndDismiss(t *testing.T) {
	a := newAPI(t)

	copied := decode[map[string]bool](t, a.do(t, http.MethodPost, "/api/v1/chat/copy", nil))
	assert.False(t, copied["copied"])

	a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "ping"})
	a.finishReply(t)

	copied = decode[map[string]bool](t, a.do(t, http.MethodPost, "/api/v1/chat/copy", nil))
	assert.True(t, copied["copied"])
	assert.Equal(t, "pong", a.clipboard.contents())

	resp := a.do(t, http.MethodDelete, "/api/v1/chat/error", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := decode[model.ChatSnapshot](t, a.do(t, http.MethodPost, "/api/v1/chat/reset", nil))
	assert.False(t, snap.HasMessages)
	assert.Empty(t, snap.ConversationID)
}

func TestConversationEndpoints(t *testing.T) {
	a := newAPI(t)
	a.do(t, http.MethodPost, "/api/v1/chat/messages", model.SendMessageRequest{Content: "ping"})
	a.finishReply(t)
	id := a.session.ConversationID()

	list := decode[model.ListConversationsResponse](t, a.do(t, http.MethodGet, "/api/v1/conversations?limit=10", nil))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "Ping", list.Conversations[0].Title)

	found := decode[model.ListConversationsResponse](t, a.do(t, http.MethodGet, "/api/v1/conversations/search?q=pi", nil))
	assert.Len(t, found.Conversations, 1)

	groups := decode[model.GroupedConversationsResponse](t, a.do(t, http.MethodGet, "/api/v1/conversations/grouped", nil))
	assert.Len(t, groups.Today, 1)

	conv := decode[model.Conversation](t, a.do(t, http.MethodPut, "/api/v1/conversations/"+id, model.UpdateConversationRequest{Title: "Renamed"}))
	assert.Equal(t, "Renamed", conv.Title)

	msgs := decode[model.ListMessagesResponse](t, a.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/messages", nil))
	require.Len(t, msgs.Messages, 2)

	a.do(t, http.MethodPost, "/api/v1/chat/reset", nil)
	snap := decode[model.ChatSnapshot](t, a.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/open", nil))
	assert.Equal(t, id, snap.ConversationID)
	assert.Len(t, snap.Messages, 2)

	resp := a.do(t, http.MethodDelete, "/api/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, a.session.HasMessages())

	resp = a.do(t, http.MethodGet, "/api/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/v1/conversations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	a := newAPI(t)

	current := decode[settings.AppSettings](t, a.do(t, http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, llm.ProviderGemini, current.LLM.Provider)

	current.LLM.APIKey = "sk-abcdefghijkl"
	current.LLM.Provider = llm.ProviderOpenAI
	updated := decode[settings.AppSettings](t, a.do(t, http.MethodPut, "/api/v1/settings", current))
	assert.Equal(t, "sk-a****ijkl", updated.LLM.APIKey)
	assert.Equal(t, "sk-abcdefghijkl", a.settings.Get().LLM.APIKey)

	// Echoing the redacted key back keeps the stored key.
	updated.General.Theme = settings.ThemeLight
	a.do(t, http.MethodPut, "/api/v1/settings", updated)
	assert.Equal(t, "sk-abcdefghijkl", a.settings.Get().LLM.APIKey)
	assert.Equal(t, settings.ThemeLight, a.settings.Get().General.Theme)

	bad := updated
	bad.Shortcuts.ToggleLauncher = "Space"
	resp := a.do(t, http.MethodPut, "/api/v1/settings", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	reset := decode[settings.AppSettings](t, a.do(t, http.MethodPost, "/api/v1/settings/reset", nil))
	assert.Equal(t, settings.Default(), reset)
}

func TestProviders(t *testing.T) {
	a := newAPI(t)

	body := decode[map[string][]ProviderInfo](t, a.do(t, http.MethodGet, "/api/v1/providers", nil))
	providers := body["providers"]
	require.Len(t, providers, len(llm.Providers()))
	for _, p := range providers {
		if p.ID == llm.ProviderCustom {
			assert.True(t, p.RequiresBaseURL)
			assert.Empty(t, p.Models)
		} else {
			assert.NotEmpty(t, p.Models)
		}
	}
}
