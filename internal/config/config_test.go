package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qwikask/qwikask/internal/llm"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QWIKASK_DATA_DIR", "/tmp/qa")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:8787", cfg.Addr)
	assert.Equal(t, filepath.Join("/tmp/qa", "history.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join("/tmp/qa", "settings.json"), cfg.SettingsPath)
	assert.Equal(t, llm.DefaultEndpoints(), cfg.Endpoints())
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Empty(t, cfg.NATSURL)
	assert.False(t, cfg.TracingEnabled)
	assert.True(t, cfg.WatchSettings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QWIKASK_ADDR", "127.0.0.1:9000")
	t.Setenv("QWIKASK_OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("QWIKASK_CONNECT_TIMEOUT", "3s")
	t.Setenv("QWIKASK_TITLE_TIMEOUT", "not-a-duration")
	t.Setenv("QWIKASK_TRACING_ENABLED", "true")
	t.Setenv("QWIKASK_ALLOWED_ORIGINS", " http://a , ,http://b")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Endpoints().OpenAI)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.TitleTimeout)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins)
}
