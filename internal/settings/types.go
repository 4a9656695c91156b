// Package settings stores the user's launcher preferences as a JSON file.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/qwikask/qwikask/internal/llm"
)

// Validation errors.
var (
	ErrInvalidTheme   = errors.New("invalid theme")
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeDark, ThemeLight, ThemeSystem:
		return true
	}
	return false
}

// DefaultSystemPrompt is the prompt used until the user writes their own.
const DefaultSystemPrompt = `You are Quick Assist, a fast and helpful AI assistant. You provide concise, accurate, and actionable responses.

Guidelines:
- Be direct and concise - users want quick answers
- Use markdown formatting for better readability
- For code, always specify the language in code blocks
- If a question is ambiguous, give the most likely answer first, then briefly mention alternatives
- Avoid unnecessary pleasantries - get straight to the point`

const (
	DefaultModel          = "gemini-2.0-flash"
	DefaultToggleLauncher = "Alt+Shift+Space"
)

// AppSettings is the root of the settings file.
type AppSettings struct {
	General   GeneralSettings  `json:"general"`
	Shortcuts ShortcutSettings `json:"shortcuts"`
	LLM       LLMSettings      `json:"llm"`
}

// GeneralSettings holds application preferences.
type GeneralSettings struct {
	AutoStartup bool  `json:"auto_startup"`
	Theme       Theme `json:"theme"`
}

// ShortcutSettings holds global hotkeys in "Modifier+Key" form.
type ShortcutSettings struct {
	ToggleLauncher string `json:"toggle_launcher"`
}

// LLMSettings selects and configures the provider.
type LLMSettings struct {
	Provider     llm.Provider `json:"provider"`
	APIKey       string       `json:"api_key"`
	Model        string       `json:"model"`
	BaseURL      string       `json:"base_url,omitempty"`
	SystemPrompt string       `json:"system_prompt"`
}

// Default returns the settings of a fresh install.
func Default() AppSettings {
	return AppSettings{
		General: GeneralSettings{
			AutoStartup: true,
			Theme:       ThemeDark,
		},
		Shortcuts: ShortcutSettings{
			ToggleLauncher: DefaultToggleLauncher,
		},
		LLM: LLMSettings{
			Provider:     llm.ProviderGemini,
			Model:        DefaultModel,
			SystemPrompt: DefaultSystemPrompt,
		},
	}
}

// ProviderConfig builds the per-send provider configuration.
func (s LLMSettings) ProviderConfig() llm.Config {
	return llm.Config{
		Provider: s.Provider,
		APIKey:   strings.TrimSpace(s.APIKey),
		Model:    strings.TrimSpace(s.Model),
		BaseURL:  strings.TrimSpace(s.BaseURL),
	}
}

// Validate checks every field a user can get wrong.
func (s AppSettings) Validate() error {
	if !s.General.Theme.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, s.General.Theme)
	}
	if _, err := ParseShortcut(s.Shortcuts.ToggleLauncher); err != nil {
		return err
	}
	if !s.LLM.Provider.Valid() {
		return fmt.Errorf("%w: %q", llm.ErrUnknownProvider, s.LLM.Provider)
	}

	base := strings.TrimSpace(s.LLM.BaseURL)
	if s.LLM.Provider == llm.ProviderCustom && base == "" {
		return fmt.Errorf("%w: custom provider requires a base URL", ErrInvalidBaseURL)
	}
	if base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
		}
	}
	return nil
}

// withDefaults fills fields a hand-edited or older file left empty.
func (s AppSettings) withDefaults() AppSettings {
	def := Default()
	if s.General.Theme == "" {
		s.General.Theme = def.General.Theme
	}
	if s.Shortcuts.ToggleLauncher == "" {
		s.Shortcuts.ToggleLauncher = def.Shortcuts.ToggleLauncher
	}
	if s.LLM.Provider == "" {
		s.LLM.Provider = def.LLM.Provider
	}
	if s.LLM.Model == "" {
		s.LLM.Model = def.LLM.Model
	}
	if s.LLM.SystemPrompt == "" {
		s.LLM.SystemPrompt = def.LLM.SystemPrompt
	}
	return s
}

// Redacted returns a copy safe to print: the API key is masked.
func (s AppSettings) Redacted() AppSettings {
	key := s.LLM.APIKey
	switch {
	case key == "":
	case len(key) <= 8:
		s.LLM.APIKey = "****"
	default:
		s.LLM.APIKey = key[:4] + "****" + key[len(key)-4:]
	}
	return s
}
