package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

const (
	transportWebSocket = "websocket"

	wsReadTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsSink writes each frame as one JSON text message.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(frame any) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(frame); err != nil {
		return err
	}
	if _, ok := frame.(model.ChunkEvent); ok {
		metrics.RecordStreamChunk(transportWebSocket)
	}
	return nil
}

// WebSocketHandler serves the streaming exchange over a WebSocket. The client
// sends one request object; the server answers with the same frames as the
// event stream endpoint and closes the connection.
type WebSocketHandler struct {
	chat     *ChatHandler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocket handler. An empty origins list accepts
// any origin.
func NewWebSocketHandler(chat *ChatHandler, origins []string) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// Stream handles GET {prefix}/chat/ws
func (h *WebSocketHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLogger(h.chat.logger, r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.IncrementStreamConnections(transportWebSocket)
	defer metrics.DecrementStreamConnections(transportWebSocket)

	sink := &wsSink{conn: conn}
	defer func() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var req model.MessageRequest
	if err := conn.ReadJSON(&req); err != nil {
		sink.Send(model.ErrorEvent{Error: "invalid request: " + err.Error()})
		return
	}

	validated, err := middleware.ValidateMessageRequest(&req)
	if err != nil {
		sink.Send(model.ErrorEvent{Error: err.Error()})
		return
	}

	turn, err := h.chat.chat.PrepareStream(ctx, serviceInput(r, validated))
	if err != nil {
		_, message := errorStatus(err)
		sink.Send(model.ErrorEvent{Error: message})
		return
	}

	if err := turn.Run(ctx, sink); err != nil {
		log.Warn("websocket stream ended with error", zap.Error(err))
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
