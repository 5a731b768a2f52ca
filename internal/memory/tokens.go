package memory

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter estimates token counts for budget decisions.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding. If the
// encoding cannot be loaded (offline first run without the bundled
// cache), it falls back to a chars/4 approximation.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter, degrading to approximation on
// encoding load failure.
func NewTokenCounter(logger *zap.Logger) *TiktokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, using approximate token counts", zap.Error(err))
		}
		return &TiktokenCounter{}
	}
	return &TiktokenCounter{encoding: enc}
}

// Count returns the token count for text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	// Approximation: ~4 characters per token for English text.
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
