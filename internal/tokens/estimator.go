// Package tokens provides token estimation utilities using tiktoken.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// Estimator provides token estimation using tiktoken
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// DefaultEncoding is cl100k_base, used by GPT-4 and Claude models
const DefaultEncoding = "cl100k_base"

// messageOverhead approximates per-message wire framing tokens.
const messageOverhead = 4

var (
	globalEstimator     *Estimator
	globalEstimatorOnce sync.Once
)

// Get returns the global token estimator (singleton)
func Get() *Estimator {
	globalEstimatorOnce.Do(func() {
		var err error
		globalEstimator, err = New()
		if err != nil {
			L_warn("tokens: failed to create estimator, using fallback", "error", err)
			globalEstimator = &Estimator{} // fallback to char-based estimation
		}
	})
	return globalEstimator
}

// New creates a new token estimator
func New() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the token count for a string.
// Falls back to chars/4 if tiktoken unavailable.
func (e *Estimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return len(text) / 4
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens)
}

// CountMessages estimates the token footprint of a message list including
// per-message overhead and serialized tool call arguments.
func (e *Estimator) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += e.Count(m.Content) + messageOverhead
		for _, tc := range m.ToolCalls {
			total += e.Count(tc.Name) + e.Count(tc.Arguments)
		}
	}
	return total
}

// Estimate is a convenience function using the global estimator.
func Estimate(text string) int {
	return Get().Count(text)
}

// EstimateMessages is a convenience function using the global estimator.
func EstimateMessages(msgs []types.Message) int {
	return Get().CountMessages(msgs)
}
