// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a provider identifier is not one of the closed set.
var ErrUnknownProvider = errors.New("unknown LLM provider")

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	// ProviderCustom is any OpenAI-compatible endpoint supplied by the user.
	ProviderCustom Provider = "custom"
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderCustom}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderCustom:
		return true
	}
	return false
}

// ParseProvider converts an identifier into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// Config is the per-call provider configuration, built fresh from settings on every send.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the provider's default endpoint. Required for ProviderCustom.
	BaseURL string
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamCallbacks receives the output of StreamChat. Exactly one of OnComplete
// or OnError is called, after zero or more OnToken calls.
type StreamCallbacks struct {
	OnToken    func(text string)
	OnComplete func()
	OnError    func(message string)
}

// Client is the interface for LLM providers.
type Client interface {
	// StreamChat streams a chat completion and blocks until a terminal callback fired.
	StreamChat(ctx context.Context, cfg Config, messages []ChatMessage, systemPrompt string, cb StreamCallbacks)

	// SimpleCompletion returns a short non-streaming completion, or "" on any failure.
	SimpleCompletion(ctx context.Context, cfg Config, prompt string) string

	// Name returns the provider name.
	Name() string

	// Models returns suggested models.
	Models() []string
}

// titleMaxTokens caps SimpleCompletion output; it only produces titles.
const titleMaxTokens = 50

// streamMaxTokens is the output ceiling for providers that require one.
const streamMaxTokens = 4096

func modelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
