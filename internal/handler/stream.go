package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

const transportSSE = "sse"

// sseSink writes each frame as one server-sent event.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(frame any) error {
	if err := sendSSEEvent(s.w, s.flusher, frame); err != nil {
		return err
	}
	if _, ok := frame.(model.ChunkEvent); ok {
		metrics.RecordStreamChunk(transportSSE)
	}
	return nil
}

// StreamMessage handles POST {prefix}/chat/message/stream
// Errors found before the stream opens are answered with a plain JSON error.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeMessageRequest(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	turn, err := h.chat.PrepareStream(ctx, serviceInput(r, req))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.IncrementStreamConnections(transportSSE)
	defer metrics.DecrementStreamConnections(transportSSE)

	if err := turn.Run(ctx, &sseSink{w: w, flusher: flusher}); err != nil {
		requestLogger(h.logger, r).Warn("stream ended with error",
			zap.Error(err),
		)
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
