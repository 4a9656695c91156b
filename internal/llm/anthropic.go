package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
)

const (
	// DefaultAnthropicBaseURL is the public Anthropic API root.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	anthropicVersion        = "2023-06-01"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

// anthropicEvent covers the stream events we act on: content_block_delta and error.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error json.RawMessage `json:"error,omitempty"`
}

// AnthropicClient speaks the Anthropic Messages protocol.
type AnthropicClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewAnthropicClient creates a new Anthropic client. An empty baseURL selects the public API.
func NewAnthropicClient(baseURL string, httpClient *http.Client, log *logger.Logger) *AnthropicClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &AnthropicClient{
		baseURL:    resolveBaseURL(baseURL, DefaultAnthropicBaseURL),
		httpClient: httpClient,
		logger:     log.Named("anthropic"),
	}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

func (c *AnthropicClient) headers(cfg Config) map[string]string {
	h := map[string]string{"anthropic-version": anthropicVersion}
	if cfg.APIKey != "" {
		h["x-api-key"] = cfg.APIKey
	}
	return h
}

// StreamChat streams a chat completion from the Messages API.
func (c *AnthropicClient) StreamChat(ctx context.Context, cfg Config, messages []ChatMessage, systemPrompt string, cb StreamCallbacks) {
	ctx, sink := startStream(ctx, ProviderAnthropic, cfg, cb, c.logger)

	base := resolveBaseURL(cfg.BaseURL, c.baseURL)
	if msg := missingKeyMessage(cfg, base, "Anthropic"); msg != "" {
		sink.fail(categoryConfig, msg)
		return
	}

	req := anthropicRequest{
		Model:     modelOrDefault(cfg.Model, defaultAnthropicModel),
		MaxTokens: streamMaxTokens,
		System:    systemPrompt,
		Messages:  make([]anthropicMessage, 0, len(messages)),
		Stream:    true,
	}
	for _, m := range messages {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: role, Content: m.Content})
	}

	resp, err := postJSON(ctx, c.httpClient, base+"/v1/messages", req, c.headers(cfg))
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
		var event anthropicEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			sink.skip(payload, err)
			return true
		}
		if msg, failed := frameError(event.Error, "Anthropic returned an error"); failed {
			protocolErr = msg
			return false
		}
		switch event.Type {
		case "error":
			protocolErr = "Anthropic returned an error"
			return false
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				sink.token(event.Delta.Text)
			}
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
func (c *AnthropicClient) SimpleCompletion(ctx context.Context, cfg Config, prompt string) string {
	ctx, span := startCompletion(ctx, ProviderAnthropic, cfg)
	defer span.End()

	base := resolveBaseURL(cfg.BaseURL, c.baseURL)
	if msg := missingKeyMessage(cfg, base, "Anthropic"); msg != "" {
		span.SetStatus(codes.Error, msg)
		return ""
	}

	opts := []option.RequestOption{
		option.WithBaseURL(base + "/"),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client := anthropic.NewClient(opts...)

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(modelOrDefault(cfg.Model, defaultAnthropicModel)),
		MaxTokens: anthropic.F(int64(titleMaxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		c.logger.Warn("simple completion failed", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return ""
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

var _ Client = (*AnthropicClient)(nil)
