package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

func TestRequestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", nil)
	ctx := context.WithValue(req.Context(), middleware.CorrelationIDKey, "corr-1")
	ctx = middleware.WithUserID(ctx, "alice")
	req = req.WithContext(ctx)

	requestLogger(log, req).Info("message failed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("%d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["correlation_id"] != "corr-1" || fields["user_id"] != "alice" {
		t.Errorf("fields = %v", fields)
	}
}
