package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// Streaming tiers, in the order they are tried.
const (
	TierPrimary  = "primary"
	TierFallback = "fallback"
	TierLegacy   = "legacy"
)

var errNoChunks = errors.New("no chunks received")

// streamAttempt is one tier of a streaming fallback chain. run reports how many
// chunks it delivered through callback.
type streamAttempt struct {
	tier  string
	model string
	run   func(ctx context.Context, prompt string, callback StreamCallback) (int, error)
}

// AttemptError records why one tier failed.
type AttemptError struct {
	Tier  string
	Model string
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Tier, e.Model, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// FallbackError is returned when every tier failed.
type FallbackError struct {
	Attempts []*AttemptError
}

func (e *FallbackError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return "all models failed: " + strings.Join(parts, "; ")
}

func (e *FallbackError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

// runAttempts tries each tier in order until one delivers at least one chunk.
// A tier that fails after delivering output ends the chain, since its chunks
// have already reached the caller. Errors returned by callback are passed
// through unchanged and never trigger a fallback; every other error is
// returned as an *Error.
func runAttempts(ctx context.Context, provider string, attempts []streamAttempt, prompt string, callback StreamCallback, classify classifier, log *logger.Logger) error {
	index := 0
	var callbackErr error
	emit := func(chunk string, _ int) error {
		i := index
		index++
		if err := callback(chunk, i); err != nil {
			callbackErr = err
			return err
		}
		return nil
	}

	fallbackErr := &FallbackError{}
	lastKind := ErrServer
	for _, a := range attempts {
		n, err := a.run(ctx, prompt, emit)
		if callbackErr != nil {
			return callbackErr
		}
		if err == nil && n == 0 {
			err = errNoChunks
		}
		if err == nil {
			metrics.RecordStreamTier(provider, a.tier)
			if a.tier != TierPrimary {
				log.Info("streaming fallback succeeded",
					zap.String("provider", provider),
					zap.String("tier", a.tier),
					zap.String("model", a.model),
					zap.Int("chunks", n),
				)
			}
			return nil
		}
		if n > 0 {
			return wrapError(provider, "stream", err, classify)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return wrapError(provider, "stream", ctxErr, nil)
		}

		log.Warn("streaming tier failed",
			zap.String("provider", provider),
			zap.String("tier", a.tier),
			zap.String("model", a.model),
			zap.Error(err),
		)
		fallbackErr.Attempts = append(fallbackErr.Attempts, &AttemptError{Tier: a.tier, Model: a.model, Err: err})
		if wrapped, ok := wrapError(provider, "stream", err, classify).(*Error); ok {
			lastKind = wrapped.Kind
		}
	}

	metrics.RecordStreamTier(provider, "exhausted")
	return &Error{
		Kind:     lastKind,
		Provider: provider,
		Op:       "stream",
		Message:  fallbackErr.Error(),
		Cause:    fallbackErr,
	}
}
