package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qwikask/qwikask/pkg/logger"
)

type stubClient struct {
	completion string
	prompts    []string
}

func (s *stubClient) StreamChat(_ context.Context, _ Config, _ []ChatMessage, _ string, cb StreamCallbacks) {
	cb.OnComplete()
}

func (s *stubClient) SimpleCompletion(_ context.Context, _ Config, prompt string) string {
	s.prompts = append(s.prompts, prompt)
	return s.completion
}

func (s *stubClient) Name() string     { return "stub" }
func (s *stubClient) Models() []string { return nil }

type stubResolver struct {
	client Client
}

func (r stubResolver) Resolve(p Provider) (Client, error) {
	if !p.Valid() {
		return nil, ErrUnknownProvider
	}
	return r.client, nil
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`Title: "Basic Arithmetic"`, "Basic Arithmetic"},
		{`title: Basic Arithmetic`, "Basic Arithmetic"},
		{`TITLE:'Go Channels'`, "Go Channels"},
		{"“Smart Quotes”", "Smart Quotes"},
		{"`Backticks`", "Backticks"},
		{"\n\n  Weekend Plans  \nExtra line", "Weekend Plans"},
		{"Plain Title", "Plain Title"},
		{`""`, ""},
		{"", ""},
		{"Titles Of Books", "Titles Of Books"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.raw))
		})
	}
}

func TestGenerateTitle(t *testing.T) {
	stub := &stubClient{completion: `Title: "Basic Arithmetic"`}
	gen := NewTitleGenerator(stubResolver{client: stub}, 0, logger.NewNop())

	got := gen.GenerateTitle(t.Context(), Config{Provider: ProviderGemini}, "What is 2+2?")

	assert.Equal(t, "Basic Arithmetic", got)
	assert.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "What is 2+2?")
}

func TestGenerateTitleEmptyCompletion(t *testing.T) {
	stub := &stubClient{completion: ""}
	gen := NewTitleGenerator(stubResolver{client: stub}, 0, logger.NewNop())

	assert.Empty(t, gen.GenerateTitle(t.Context(), Config{Provider: ProviderOpenAI}, "hello"))
}

func TestGenerateTitleUnknownProvider(t *testing.T) {
	stub := &stubClient{completion: "Never Used"}
	gen := NewTitleGenerator(stubResolver{client: stub}, 0, logger.NewNop())

	assert.Empty(t, gen.GenerateTitle(t.Context(), Config{Provider: "bogus"}, "hello"))
	assert.Empty(t, stub.prompts)
}
