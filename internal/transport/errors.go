package transport

import (
	"errors"
	"fmt"
	"time"
)

// Adapters translate channel-specific failures into this small taxonomy so
// callers can classify outcomes with errors.Is/errors.As instead of matching
// provider error strings.
var (
	// ErrRecipientGone means the recipient can never be reached again without
	// user action (bot blocked, account deactivated, chat deleted).
	ErrRecipientGone = errors.New("transport: recipient unreachable")

	// ErrSurfaceNotFound means the message targeted by an edit no longer
	// exists (deleted or too old to edit).
	ErrSurfaceNotFound = errors.New("transport: message to edit not found")

	// ErrContentUnchanged means the channel rejected an edit because the
	// displayed content already matches the new content. Benign.
	ErrContentUnchanged = errors.New("transport: message content unchanged")
)

// RateLimitError reports that the channel asked us to back off for RetryAfter
// before sending again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("transport: rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimit extracts a RateLimitError from an error chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
