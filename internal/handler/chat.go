// Package handler implements the HTTP endpoints.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger.OrGlobal(log).Named("handler"),
	}
}

// SendMessage handles POST {prefix}/chat/message
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMessageRequest(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.chat.Execute(r.Context(), serviceInput(r, req))
	if err != nil {
		status, message := errorStatus(err)
		requestLogger(h.logger, r).Warn("message failed",
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET {prefix}/chat/health
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
