package handler

import (
	"net/http"

	"github.com/qwikask/qwikask/internal/middleware"
	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/pkg/logger"
)

// ChatHandler handles the chat session endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log,
	}
}

// Snapshot handles GET /api/v1/chat
func (h *ChatHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// Send handles POST /api/v1/chat/messages. A message sent while a reply is
// streaming is ignored and reported as not accepted.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.chat.Send(req.Content) {
		writeJSON(w, http.StatusAccepted, &model.SendMessageResponse{Accepted: true})
		return
	}
	writeJSON(w, http.StatusConflict, &model.SendMessageResponse{
		Accepted: false,
		Error:    h.chat.Snapshot().Error,
	})
}

// Reset handles POST /api/v1/chat/reset
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.chat.Reset()
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// Copy handles POST /api/v1/chat/copy
func (h *ChatHandler) Copy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"copied": h.chat.CopyLastResponse(),
	})
}

// DismissError handles DELETE /api/v1/chat/error
func (h *ChatHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	h.chat.DismissError()
	w.WriteHeader(http.StatusNoContent)
}
