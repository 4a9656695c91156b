package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// openAIStreamChunk is the subset of a chat.completion.chunk frame we read.
type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

var openAIDone = []byte("[DONE]")

// OpenAIClient speaks the OpenAI chat completions protocol. It also serves
// custom OpenAI-compatible endpoints, which must set Config.BaseURL.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL selects the public API.
func NewOpenAIClient(baseURL string, httpClient *http.Client, log *logger.Logger) *OpenAIClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &OpenAIClient{
		baseURL:    resolveBaseURL(baseURL, DefaultOpenAIBaseURL),
		httpClient: httpClient,
		logger:     log.Named("openai"),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return string(ProviderOpenAI)
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-3.5-turbo",
	}
}

// base returns the endpoint root for cfg, or "" when a custom provider has none.
// provider labels metrics and spans; custom endpoints are reported apart.
func (c *OpenAIClient) provider(cfg Config) Provider {
	if cfg.Provider == ProviderCustom {
		return ProviderCustom
	}
	return ProviderOpenAI
}

func (c *OpenAIClient) base(cfg Config) string {
	if cfg.Provider == ProviderCustom {
		return resolveBaseURL(cfg.BaseURL, "")
	}
	return resolveBaseURL(cfg.BaseURL, c.baseURL)
}

func (c *OpenAIClient) label(cfg Config) string {
	if cfg.Provider == ProviderCustom {
		return "Custom provider"
	}
	return "OpenAI"
}

func (c *OpenAIClient) configError(cfg Config) string {
	base := c.base(cfg)
	if base == "" {
		return "Custom provider requires a base URL. Please add it in Settings."
	}
	return missingKeyMessage(cfg, base, c.label(cfg))
}

func (c *OpenAIClient) chatRequest(cfg Config, messages []ChatMessage, systemPrompt string) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:    modelOrDefault(cfg.Model, defaultOpenAIModel),
		Messages: msgs,
	}
}

func authHeaders(cfg Config) map[string]string {
	if cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

// StreamChat streams a chat completion over SSE.
func (c *OpenAIClient) StreamChat(ctx context.Context, cfg Config, messages []ChatMessage, systemPrompt string, cb StreamCallbacks) {
	ctx, sink := startStream(ctx, c.provider(cfg), cfg, cb, c.logger)

	if msg := c.configError(cfg); msg != "" {
		sink.fail(categoryConfig, msg)
		return
	}

	req := c.chatRequest(cfg, messages, systemPrompt)
	req.Stream = true

	resp, err := postJSON(ctx, c.httpClient, c.base(cfg)+"/chat/completions", req, authHeaders(cfg))
	if err != nil {
		sink.fail(categoryTransport, transportErrorMessage(err))
		return
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		sink.fail(categoryHTTP, httpErrorMessage(resp.StatusCode, resp.Body))
		return
	}

	var protocolErr string
	err = readDataLines(resp.Body, func(payload []byte) bool {
		if bytes.Equal(payload, openAIDone) {
			return true
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			sink.skip(payload, err)
			return true
		}
		if msg, failed := frameError(chunk.Error, "Provider returned an error"); failed {
			protocolErr = msg
			return false
		}
		if len(chunk.Choices) > 0 {
			sink.token(chunk.Choices[0].Delta.Content)
		}
		return true
	})

	switch {
	case protocolErr != "":
		sink.fail(categoryProtocol, protocolErr)
	case err != nil:
		sink.fail(categoryTransport, transportErrorMessage(err))
	default:
		sink.complete()
	}
}

// SimpleCompletion returns a short non-streaming completion, or "" on failure.
func (c *OpenAIClient) SimpleCompletion(ctx context.Context, cfg Config, prompt string) string {
	ctx, span := startCompletion(ctx, c.provider(cfg), cfg)
	defer span.End()

	if msg := c.configError(cfg); msg != "" {
		span.SetStatus(codes.Error, msg)
		return ""
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = c.base(cfg)
	clientCfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientCfg)

	req := c.chatRequest(cfg, []ChatMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}, "")
	req.MaxTokens = titleMaxTokens

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("simple completion rejected",
				zap.Int("status", apiErr.HTTPStatusCode),
				zap.String("error", apiErr.Message),
			)
		} else {
			c.logger.Warn("simple completion failed", zap.Error(err))
		}
		span.SetStatus(codes.Error, err.Error())
		return ""
	}

	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

var _ Client = (*OpenAIClient)(nil)
