package llm

import (
	"fmt"
	"net/http"

	"github.com/qwikask/qwikask/pkg/logger"
)

// Endpoints holds the default base URL of each built-in provider.
type Endpoints struct {
	Gemini    string
	OpenAI    string
	Anthropic string
}

// DefaultEndpoints returns the public API roots.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Gemini:    DefaultGeminiBaseURL,
		OpenAI:    DefaultOpenAIBaseURL,
		Anthropic: DefaultAnthropicBaseURL,
	}
}

// Resolver maps a provider to the client that speaks its protocol.
type Resolver interface {
	Resolve(p Provider) (Client, error)
}

// Registry is the fixed set of provider clients. Custom endpoints share the
// OpenAI client.
type Registry struct {
	gemini    *GeminiClient
	openai    *OpenAIClient
	anthropic *AnthropicClient
}

// NewRegistry creates one client per wire protocol.
func NewRegistry(endpoints Endpoints, httpClient *http.Client, log *logger.Logger) *Registry {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	log = log.Named("llm")
	return &Registry{
		gemini:    NewGeminiClient(endpoints.Gemini, httpClient, log),
		openai:    NewOpenAIClient(endpoints.OpenAI, httpClient, log),
		anthropic: NewAnthropicClient(endpoints.Anthropic, httpClient, log),
	}
}

// Resolve returns the client for p.
func (r *Registry) Resolve(p Provider) (Client, error) {
	switch p {
	case ProviderGemini:
		return r.gemini, nil
	case ProviderOpenAI, ProviderCustom:
		return r.openai, nil
	case ProviderAnthropic:
		return r.anthropic, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, string(p))
	}
}

// ModelsFor returns the suggested models for p, or nil for custom endpoints.
func (r *Registry) ModelsFor(p Provider) []string {
	if p == ProviderCustom {
		return nil
	}
	client, err := r.Resolve(p)
	if err != nil {
		return nil
	}
	return client.Models()
}
