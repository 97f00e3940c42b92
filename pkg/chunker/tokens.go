package chunker

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many tokens a string encodes to.
type TokenCounter func(text string) int

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// NewTokenCounter returns a counter backed by the tiktoken encoding for the
// given model, falling back to cl100k_base, and finally to a bytes/4
// approximation when no encoding can be initialized (e.g. offline).
func NewTokenCounter(model string) TokenCounter {
	encodingOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			slog.Warn("Token encoding unavailable, using byte approximation", "error", err)
			return
		}
		encoding = enc
	})

	if encoding == nil {
		return ApproxTokenCounter
	}
	return func(text string) int {
		return len(encoding.Encode(text, nil, nil))
	}
}

// ApproxTokenCounter estimates ≈4 bytes per token. Used as the offline
// fallback and for the conversation-history budget.
func ApproxTokenCounter(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
