package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwikask/qwikask/pkg/logger"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(DefaultEndpoints(), nil, logger.NewNop())

	tests := []struct {
		provider Provider
		want     string
	}{
		{ProviderGemini, "gemini"},
		{ProviderOpenAI, "openai"},
		{ProviderAnthropic, "anthropic"},
		{ProviderCustom, "openai"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			client, err := r.Resolve(tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.Name())
		})
	}
}

func TestRegistryCustomSharesOpenAIClient(t *testing.T) {
	r := NewRegistry(DefaultEndpoints(), nil, logger.NewNop())

	openai, err := r.Resolve(ProviderOpenAI)
	require.NoError(t, err)
	custom, err := r.Resolve(ProviderCustom)
	require.NoError(t, err)

	assert.Same(t, openai, custom)
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry(DefaultEndpoints(), nil, logger.NewNop())

	client, err := r.Resolve(Provider("mistral"))
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryModelsFor(t *testing.T) {
	r := NewRegistry(DefaultEndpoints(), nil, logger.NewNop())

	assert.Contains(t, r.ModelsFor(ProviderGemini), "gemini-2.0-flash")
	assert.Contains(t, r.ModelsFor(ProviderAnthropic), defaultAnthropicModel)
	assert.Nil(t, r.ModelsFor(ProviderCustom))
	assert.Nil(t, r.ModelsFor(Provider("nope")))
}

func TestParseProvider(t *testing.T) {
	for _, p := range Providers() {
		got, err := ParseProvider(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseProvider("GEMINI")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
