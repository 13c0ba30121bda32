package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base".
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: tkm}, nil
}

// CountTokens returns the number of tokens in text.
func (t *TiktokenCounter) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// estimateCounter approximates four bytes per token.
type estimateCounter struct{}

func (estimateCounter) CountTokens(text string) int {
	return len(text) / 4
}
