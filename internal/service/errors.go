package service

import (
	"errors"

	"github.com/capitalize-ai/chat-gateway/internal/repository"
)

// LLMError reports a provider failure.
type LLMError struct {
	Err error
}

func (e *LLMError) Error() string {
	return "failed to generate LLM response: " + e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// RepositoryError reports a failed lookup or save, including unknown conversation ids.
type RepositoryError struct {
	Err error
}

func (e *RepositoryError) Error() string {
	return e.Err.Error()
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is caused by an unknown conversation id.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
