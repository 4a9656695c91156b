package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/settings"
	"github.com/qwikask/qwikask/pkg/logger"
)

// SettingsStore is the settings file as used by the API.
type SettingsStore interface {
	Get() settings.AppSettings
	Update(next settings.AppSettings) error
	Reset() (settings.AppSettings, error)
}

// ModelCatalog lists suggested models per provider.
type ModelCatalog interface {
	ModelsFor(p llm.Provider) []string
}

// ProviderInfo describes one selectable provider.
type ProviderInfo struct {
	ID              llm.Provider `json:"id"`
	Models          []string     `json:"models"`
	RequiresBaseURL bool         `json:"requires_base_url"`
}

// SettingsHandler handles settings endpoints. The API key never leaves the
// process in full; responses carry the redacted form.
type SettingsHandler struct {
	store   SettingsStore
	catalog ModelCatalog
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store SettingsStore, catalog ModelCatalog, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:   store,
		catalog: catalog,
		logger:  log,
	}
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get().Redacted())
}

// Update handles PUT /api/v1/settings
//
// Sending back the redacted key unchanged keeps the stored key.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var next settings.AppSettings
	if err := decodeJSON(w, r, &next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current := h.store.Get()
	if next.LLM.APIKey != "" && next.LLM.APIKey == current.Redacted().LLM.APIKey {
		next.LLM.APIKey = current.LLM.APIKey
	}

	if err := h.store.Update(next); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to save settings", zap.Error(err))
			writeError(w, status, "failed to save settings")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.store.Get().Redacted())
}

// Reset handles POST /api/v1/settings/reset
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	def, err := h.store.Reset()
	if err != nil {
		h.logger.Error("failed to reset settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}

	writeJSON(w, http.StatusOK, def.Redacted())
}

// Providers handles GET /api/v1/providers
func (h *SettingsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	providers := llm.Providers()
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		models := h.catalog.ModelsFor(p)
		if models == nil {
			models = []string{}
		}
		out = append(out, ProviderInfo{
			ID:              p,
			Models:          models,
			RequiresBaseURL: p == llm.ProviderCustom,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]ProviderInfo{"providers": out})
}
