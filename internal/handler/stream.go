package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/pkg/logger"
	"github.com/qwikask/qwikask/pkg/metrics"
)

// StreamHandler serves the chat session as a server-sent event feed.
type StreamHandler struct {
	chat      *service.ChatService
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(chat *service.ChatService, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &StreamHandler{
		chat:      chat,
		heartbeat: heartbeat,
		logger:    log,
	}
}

// Events handles GET /api/v1/chat/events
//
// The first event is the current snapshot. Each later "snapshot" event is
// the latest state; intermediate states a slow client missed are skipped.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	updates, stop := h.chat.Subscribe()
	defer stop()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return

		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := sendSSEEvent(w, flusher, "snapshot", snap); err != nil {
				h.logger.Debug("failed to write SSE event", zap.Error(err))
				return
			}

		case now := <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: now.UnixMilli(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
