package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
	"github.com/qwikask/qwikask/pkg/metrics"
)

var tracer = otel.Tracer("github.com/qwikask/qwikask/internal/llm")

// Error categories, also used as metric labels.
const (
	categoryConfig    = "config"
	categoryHTTP      = "http"
	categoryTransport = "transport"
	categoryProtocol  = "protocol"
)

// streamSink enforces the callback contract for one StreamChat call:
// one terminal callback, and no token after it. A sink is driven by a single
// goroutine.
type streamSink struct {
	cb       StreamCallbacks
	provider string
	span     trace.Span
	logger   *logger.Logger
	start    time.Time
	done     bool
}

func startStream(ctx context.Context, provider Provider, cfg Config, cb StreamCallbacks, log *logger.Logger) (context.Context, *streamSink) {
	ctx, span := tracer.Start(ctx, "llm.StreamChat", trace.WithAttributes(
		attribute.String("llm.provider", string(provider)),
		attribute.String("llm.model", cfg.Model),
	))
	return ctx, &streamSink{
		cb:       cb,
		provider: string(provider),
		span:     span,
		logger:   log.With(zap.String("provider", string(provider)), zap.String("model", cfg.Model)),
		start:    time.Now(),
	}
}

func (s *streamSink) token(text string) {
	if s.done || text == "" {
		return
	}
	metrics.LLMTokensTotal.WithLabelValues(s.provider).Inc()
	if s.cb.OnToken != nil {
		s.cb.OnToken(text)
	}
}

// skip records a frame that could not be decoded; the stream continues.
func (s *streamSink) skip(payload []byte, err error) {
	metrics.LLMDecodeSkips.WithLabelValues(s.provider).Inc()
	s.logger.Debug("skipping undecodable SSE frame",
		zap.Error(err),
		zap.Int("bytes", len(payload)),
	)
}

func (s *streamSink) complete() {
	if s.done {
		return
	}
	s.done = true
	metrics.RecordLLMStream(s.provider, "success", time.Since(s.start).Seconds())
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
	if s.cb.OnComplete != nil {
		s.cb.OnComplete()
	}
}

func (s *streamSink) fail(category, message string) {
	if s.done {
		return
	}
	s.done = true
	metrics.RecordLLMStream(s.provider, "error", time.Since(s.start).Seconds())
	metrics.LLMStreamErrors.WithLabelValues(s.provider, category).Inc()
	s.logger.Warn("stream failed", zap.String("category", category), zap.String("error", message))
	s.span.SetStatus(codes.Error, message)
	s.span.End()
	if s.cb.OnError != nil {
		s.cb.OnError(message)
	}
}

func startCompletion(ctx context.Context, provider Provider, cfg Config) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm.SimpleCompletion", trace.WithAttributes(
		attribute.String("llm.provider", string(provider)),
		attribute.String("llm.model", cfg.Model),
	))
}
