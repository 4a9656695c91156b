// Package config provides environment configuration for the launcher backend.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qwikask/qwikask/internal/llm"
)

// Config holds all configuration for the application.
type Config struct {
	// Local API settings
	Addr               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string
	HeartbeatInterval  time.Duration
	// APIToken, when set, is required as a bearer token on /api/v1
	APIToken string

	// Storage
	DataDir      string
	DatabasePath string
	SettingsPath string

	// Settings file watching
	WatchSettings bool

	// LLM transport
	GeminiBaseURL    string
	OpenAIBaseURL    string
	AnthropicBaseURL string
	ConnectTimeout   time.Duration
	TitleTimeout     time.Duration
	WriteTimeout     time.Duration

	// NATS settings; an empty URL disables the event mirror
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	dataDir := getEnv("QWIKASK_DATA_DIR", defaultDataDir())

	return &Config{
		// Local API
		Addr:               getEnv("QWIKASK_ADDR", "127.0.0.1:8787"),
		ServerReadTimeout:  getDurationEnv("QWIKASK_SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("QWIKASK_SERVER_WRITE_TIMEOUT", 0),
		AllowedOrigins:     getListEnv("QWIKASK_ALLOWED_ORIGINS", []string{"tauri://localhost", "http://localhost:*", "http://127.0.0.1:*"}),
		HeartbeatInterval:  getDurationEnv("QWIKASK_HEARTBEAT_INTERVAL", 15*time.Second),
		APIToken:           getEnv("QWIKASK_API_TOKEN", ""),

		// Storage
		DataDir:      dataDir,
		DatabasePath: getEnv("QWIKASK_DB_PATH", filepath.Join(dataDir, "history.db")),
		SettingsPath: getEnv("QWIKASK_SETTINGS_PATH", filepath.Join(dataDir, "settings.json")),

		WatchSettings: getBoolEnv("QWIKASK_WATCH_SETTINGS", true),

		// LLM
		GeminiBaseURL:    getEnv("QWIKASK_GEMINI_BASE_URL", llm.DefaultGeminiBaseURL),
		OpenAIBaseURL:    getEnv("QWIKASK_OPENAI_BASE_URL", llm.DefaultOpenAIBaseURL),
		AnthropicBaseURL: getEnv("QWIKASK_ANTHROPIC_BASE_URL", llm.DefaultAnthropicBaseURL),
		ConnectTimeout:   getDurationEnv("QWIKASK_CONNECT_TIMEOUT", 10*time.Second),
		TitleTimeout:     getDurationEnv("QWIKASK_TITLE_TIMEOUT", 15*time.Second),
		WriteTimeout:     getDurationEnv("QWIKASK_WRITE_TIMEOUT", 10*time.Second),

		// NATS
		NATSURL:      getEnv("QWIKASK_NATS_URL", ""),
		NATSCAFile:   getEnv("QWIKASK_NATS_CA_FILE", ""),
		NATSCertFile: getEnv("QWIKASK_NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("QWIKASK_NATS_KEY_FILE", ""),
		NATSToken:    getEnv("QWIKASK_NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("QWIKASK_LOG_LEVEL", "info"),
		LogFile:  getEnv("QWIKASK_LOG_FILE", filepath.Join(dataDir, "logs", "qwikask.log")),

		// Tracing
		TracingEndpoint: getEnv("QWIKASK_TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("QWIKASK_TRACING_ENABLED", false),
	}
}

// Endpoints returns the provider base URLs.
func (c *Config) Endpoints() llm.Endpoints {
	return llm.Endpoints{
		Gemini:    c.GeminiBaseURL,
		OpenAI:    c.OpenAIBaseURL,
		Anthropic: c.AnthropicBaseURL,
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "qwikask")
	}
	return ".qwikask"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
