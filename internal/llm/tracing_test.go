package llm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/qwikask/qwikask/pkg/logger"
)

var (
	spansOnce sync.Once
	spans     *tracetest.SpanRecorder
)

// recordSpans installs a recording tracer provider for the package tests.
// The global provider can only be delegated once, so it is shared.
func recordSpans() *tracetest.SpanRecorder {
	spansOnce.Do(func() {
		spans = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	return spans
}

func providerLabels(rec *tracetest.SpanRecorder, name string) []string {
	var out []string
	for _, span := range rec.Ended() {
		if span.Name() != name {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == attribute.Key("llm.provider") {
				out = append(out, kv.Value.AsString())
			}
		}
	}
	return out
}

func TestOpenAISpansLabelCustomEndpoints(t *testing.T) {
	rec := recordSpans()
	nop := logger.NewNop()

	srv, _ := captureServer(t, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Local Title"},"finish_reason":"stop"}]}`)
	client := NewOpenAIClient("", nil, nop)

	before := len(providerLabels(rec, "llm.SimpleCompletion"))
	got := client.SimpleCompletion(t.Context(), Config{Provider: ProviderCustom, Model: "llama3", BaseURL: srv.URL}, "name this")
	require.Equal(t, "Local Title", got)

	labels := providerLabels(rec, "llm.SimpleCompletion")
	require.Len(t, labels, before+1)
	assert.Equal(t, string(ProviderCustom), labels[len(labels)-1])

	assert.Equal(t, ProviderCustom, client.provider(Config{Provider: ProviderCustom}))
	assert.Equal(t, ProviderOpenAI, client.provider(Config{Provider: ProviderOpenAI}))
}
