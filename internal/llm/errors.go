package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies provider errors. The kind is informational: callers treat
// every provider error the same way.
type ErrorKind int

const (
	ErrUnknown        ErrorKind = iota
	ErrConfig                   // misconfiguration, missing credentials
	ErrAuthentication           // 401/403
	ErrInvalidRequest           // 400
	ErrNotFound                 // 404, unknown model
	ErrRateLimit                // 429
	ErrServer                   // 500+, timeouts
	ErrEmptyResponse            // upstream answered without text
	ErrCanceled                 // caller went away
)

var errorKindNames = [...]string{
	ErrUnknown:        "unknown",
	ErrConfig:         "config",
	ErrAuthentication: "authentication",
	ErrInvalidRequest: "invalid_request",
	ErrNotFound:       "not_found",
	ErrRateLimit:      "rate_limit",
	ErrServer:         "server",
	ErrEmptyResponse:  "empty_response",
	ErrCanceled:       "canceled",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// Error is the single error type providers return.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("llm [")
	b.WriteString(e.Kind.String())
	b.WriteString("]")
	if e.Provider != "" {
		b.WriteString(" ")
		b.WriteString(e.Provider)
	}
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// classifier maps an SDK error to a kind. It returns false when it does not
// recognize the error.
type classifier func(err error) (ErrorKind, bool)

// wrapError converts err into an *Error unless it already is one.
func wrapError(provider, op string, err error, classify classifier) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}

	kind := ErrUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrServer
	default:
		if classify != nil {
			if k, ok := classify(err); ok {
				kind = k
				break
			}
		}
		kind = classifyMessage(err.Error())
	}

	return &Error{
		Kind:     kind,
		Provider: provider,
		Op:       op,
		Message:  err.Error(),
		Cause:    err,
	}
}

func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "throttl"):
		return ErrRateLimit
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key") || strings.Contains(lower, "access denied"):
		return ErrAuthentication
	default:
		return ErrServer
	}
}

// kindForStatus maps an HTTP status code to a kind.
func kindForStatus(status int) (ErrorKind, bool) {
	switch {
	case status == 0:
		return ErrUnknown, false
	case status == 401 || status == 403:
		return ErrAuthentication, true
	case status == 404:
		return ErrNotFound, true
	case status == 429:
		return ErrRateLimit, true
	case status >= 500:
		return ErrServer, true
	case status >= 400:
		return ErrInvalidRequest, true
	default:
		return ErrUnknown, false
	}
}
