package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/middleware"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/pkg/logger"
)

// ConversationHandler handles conversation history endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

func (h *ConversationHandler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		writeError(w, status, "conversation not found")
		return
	}
	h.logger.Error("conversation request failed", zap.String("operation", op), zap.Error(err))
	writeError(w, status, "failed to "+op)
}

// conversationID reads and validates the {id} route parameter.
func conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	resp, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/v1/conversations/search?q=
func (h *ConversationHandler) Search(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "search conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{Conversations: convs})
}

// Grouped handles GET /api/v1/conversations/grouped
func (h *ConversationHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Grouped(r.Context())
	if err != nil {
		h.fail(w, "group conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Update handles PUT /api/v1/conversations/{id}
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req model.UpdateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Rename(r.Context(), id, req.Title)
	if err != nil {
		h.fail(w, "update conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Messages(r.Context(), id)
	if err != nil {
		h.fail(w, "get messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Open handles POST /api/v1/conversations/{id}/open
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Open(r.Context(), id)
	if err != nil {
		h.fail(w, "open conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
