package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// maxBodyBytes bounds request bodies well above the largest valid message.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps an error to its HTTP status and client-facing message.
func errorStatus(err error) (int, string) {
	var validationErr *middleware.ValidationError
	var llmErr *service.LLMError
	var repoErr *service.RepositoryError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, validationErr.Error()
	case errors.As(err, &llmErr):
		return http.StatusServiceUnavailable, "LLM service error: " + llmErr.Error()
	case errors.As(err, &repoErr):
		return http.StatusInternalServerError, "Repository error: " + repoErr.Error()
	default:
		return http.StatusInternalServerError, "Unexpected error: " + err.Error()
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	writeError(w, status, message)
}

// decodeMessageRequest reads and validates a message request body.
func decodeMessageRequest(w http.ResponseWriter, r *http.Request) (*model.MessageRequest, error) {
	var req model.MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &middleware.ValidationError{Field: "body", Message: "field required"}
		}
		return nil, &middleware.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return middleware.ValidateMessageRequest(&req)
}

// serviceInput builds the use case input for an authenticated, validated request.
func serviceInput(r *http.Request, req *model.MessageRequest) service.Input {
	in := service.Input{
		UserID:  middleware.GetUserID(r.Context()),
		Content: req.Message,
	}
	if in.UserID == "" {
		in.UserID = middleware.DefaultUserID
	}
	if req.ConversationID != nil {
		in.ConversationID = *req.ConversationID
	}
	if req.ModelID != nil {
		in.ModelID = *req.ModelID
	}
	return in
}

// requestLogger tags log with the request's correlation and user ids.
func requestLogger(log *logger.Logger, r *http.Request) *logger.Logger {
	ctx := r.Context()
	return log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))
}
