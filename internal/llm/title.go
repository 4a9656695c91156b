package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
	"github.com/qwikask/qwikask/pkg/metrics"
)

const titlePrompt = `Generate a short, descriptive title (3-6 words) for a conversation that starts with the following message. Respond with only the title, no quotes or punctuation at the end.

Message: %s`

// TitleGenerator asks the configured provider to name a conversation.
type TitleGenerator struct {
	resolver Resolver
	timeout  time.Duration
	logger   *logger.Logger
}

// NewTitleGenerator creates a new title generator. A zero timeout disables the deadline.
func NewTitleGenerator(resolver Resolver, timeout time.Duration, log *logger.Logger) *TitleGenerator {
	return &TitleGenerator{
		resolver: resolver,
		timeout:  timeout,
		logger:   log.Named("title"),
	}
}

// GenerateTitle returns a cleaned title for a conversation opened by
// userMessage, or "" when none could be produced.
func (g *TitleGenerator) GenerateTitle(ctx context.Context, cfg Config, userMessage string) string {
	provider := string(cfg.Provider)

	client, err := g.resolver.Resolve(cfg.Provider)
	if err != nil {
		g.logger.Error("cannot generate title", zap.Error(err))
		metrics.TitleGenerations.WithLabelValues(provider, "error").Inc()
		return ""
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw := client.SimpleCompletion(ctx, cfg, fmt.Sprintf(titlePrompt, userMessage))
	title := CleanTitle(raw)
	if title == "" {
		metrics.TitleGenerations.WithLabelValues(provider, "empty").Inc()
		return ""
	}

	metrics.TitleGenerations.WithLabelValues(provider, "success").Inc()
	return title
}

const titleQuotes = "\"'`“”‘’"

// CleanTitle strips a leading "Title:" label and surrounding quotes from a
// model-produced title. Only the first non-empty line is kept.
func CleanTitle(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	if len(line) >= len("title:") && strings.EqualFold(line[:len("title:")], "title:") {
		line = strings.TrimSpace(line[len("title:"):])
	}

	return strings.TrimSpace(strings.Trim(line, titleQuotes))
}
