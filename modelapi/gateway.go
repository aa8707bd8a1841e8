package modelapi

import (
	"context"
	"iter"
	"time"
)

// Image is an inline image sent to the model as its own content part.
type Image struct {
	MIMEType string
	Data     []byte
}

// Prompt is the full input for one completion call.
type Prompt struct {
	Text  string
	Image *Image
}

// Gateway is a text (and vision) completion service. Calls are slow, may fail
// and may cost quota, so implementations never repeat a request that reached
// the model and produced output.
type Gateway interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	// Stream yields text chunks as they arrive. The sequence is finite and
	// cannot be restarted; an error ends it.
	Stream(ctx context.Context, prompt Prompt) iter.Seq2[string, error]
}

const baseDelay = 1 * time.Second

// ExponentialBackoff returns the wait before retry number attempt (0-based).
func ExponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}
