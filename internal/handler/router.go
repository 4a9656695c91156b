package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qwikask/qwikask/internal/middleware"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/pkg/logger"
)

// Deps are the collaborators of the local API.
type Deps struct {
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Settings      SettingsStore
	Catalog       ModelCatalog
	DB            Pinger
	Events        ConnectionStatus

	AllowedOrigins []string
	APIToken       string
	Heartbeat      time.Duration
	Logger         *logger.Logger
}

// NewRouter builds the local API routes.
func NewRouter(d Deps) http.Handler {
	log := d.Logger.Named("api")

	healthHandler := NewHealthHandler(d.DB, d.Events)
	chatHandler := NewChatHandler(d.Chat, log)
	streamHandler := NewStreamHandler(d.Chat, d.Heartbeat, log)
	conversationHandler := NewConversationHandler(d.Conversations, log)
	settingsHandler := NewSettingsHandler(d.Settings, d.Catalog, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.LocalOnly)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Token(d.APIToken))

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", chatHandler.Snapshot)
			r.Get("/events", streamHandler.Events)
			r.Post("/messages", chatHandler.Send)
			r.Post("/reset", chatHandler.Reset)
			r.Post("/copy", chatHandler.Copy)
			r.Delete("/error", chatHandler.DismissError)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/search", conversationHandler.Search)
			r.Get("/grouped", conversationHandler.Grouped)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/open", conversationHandler.Open)
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
			r.Post("/reset", settingsHandler.Reset)
		})
		r.Get("/providers", settingsHandler.Providers)
	})

	return r
}
