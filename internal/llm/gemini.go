package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// Gemini request/response payloads.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// GeminiClient speaks the Gemini generateContent protocol.
type GeminiClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewGeminiClient creates a new Gemini client. An empty baseURL selects the public API.
func NewGeminiClient(baseURL string, httpClient *http.Client, log *logger.Logger) *GeminiClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &GeminiClient{
		baseURL:    resolveBaseURL(baseURL, DefaultGeminiBaseURL),
		httpClient: httpClient,
		logger:     log.Named("gemini"),
	}
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return string(ProviderGemini)
}

// Models returns suggested models.
func (c *GeminiClient) Models() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-pro",
		"gemini-1.5-flash",
	}
}

func (c *GeminiClient) endpoint(cfg Config, method string, stream bool) string {
	base := resolveBaseURL(cfg.BaseURL, c.baseURL)
	model := modelOrDefault(cfg.Model, defaultGeminiModel)

	q := url.Values{}
	if stream {
		q.Set("alt", "sse")
	}
	if cfg.APIKey != "" {
		q.Set("key", cfg.APIKey)
	}

	endpoint := base + "/models/" + url.PathEscape(model) + ":" + method
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

func geminiContents(messages []ChatMessage) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return contents
}

// StreamChat streams a chat completion from streamGenerateContent.
func (c *GeminiClient) StreamChat(ctx context.Context, cfg Config, messages []ChatMessage, systemPrompt string, cb StreamCallbacks) {
	ctx, sink := startStream(ctx, ProviderGemini, cfg, cb, c.logger)

	base := resolveBaseURL(cfg.BaseURL, c.baseURL)
	if msg := missingKeyMessage(cfg, base, "Gemini"); msg != "" {
		sink.fail(categoryConfig, msg)
		return
	}

	req := geminiRequest{Contents: geminiContents(messages)}
	if systemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	resp, err := postJSON(ctx, c.httpClient, c.endpoint(cfg, "streamGenerateContent", true), req, nil)
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
		var frame geminiResponse
		if err := json.Unmarshal(payload, &frame); err != nil {
			sink.skip(payload, err)
			return true
		}
		if msg, failed := frameError(frame.Error, "Gemini returned an error"); failed {
			protocolErr = msg
			return false
		}
		sink.token(frame.text())
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

// SimpleCompletion returns a short completion from generateContent, or "" on failure.
func (c *GeminiClient) SimpleCompletion(ctx context.Context, cfg Config, prompt string) string {
	ctx, span := startCompletion(ctx, ProviderGemini, cfg)
	defer span.End()

	if missingKeyMessage(cfg, resolveBaseURL(cfg.BaseURL, c.baseURL), "Gemini") != "" {
		span.SetStatus(codes.Error, "missing api key")
		return ""
	}

	req := geminiRequest{
		Contents:         geminiContents([]ChatMessage{{Role: "user", Content: prompt}}),
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: titleMaxTokens},
	}

	resp, err := postJSON(ctx, c.httpClient, c.endpoint(cfg, "generateContent", false), req, nil)
	if err != nil {
		c.logger.Warn("simple completion failed", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return ""
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		msg := httpErrorMessage(resp.StatusCode, resp.Body)
		c.logger.Warn("simple completion rejected", zap.Int("status", resp.StatusCode), zap.String("error", msg))
		span.SetStatus(codes.Error, msg)
		return ""
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("failed to decode simple completion", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return ""
	}
	if msg, failed := frameError(out.Error, "Gemini returned an error"); failed {
		span.SetStatus(codes.Error, msg)
		return ""
	}
	return strings.TrimSpace(out.text())
}

var _ Client = (*GeminiClient)(nil)
