package llm

import (
	"context"
	"time"
)

// splitRunes splits text into chunks of at most size runes.
func splitRunes(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// replay delivers a complete text as a sequence of fixed-size chunks with delay
// between consecutive chunks. It returns the number of chunks delivered.
func replay(ctx context.Context, text string, size int, delay time.Duration, callback StreamCallback) (int, error) {
	delivered := 0
	for i, chunk := range splitRunes(text, size) {
		if i > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return delivered, err
			}
		}
		delivered++
		if err := callback(chunk, i); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}
