package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "kursbot/internal/transport"
)

// classify maps telebot errors onto the transport taxonomy. Errors we cannot
// classify pass through unchanged and count as "other" failures upstream.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		after := time.Duration(flood.RetryAfter) * time.Second
		if after <= 0 {
			after = time.Second
		}
		return &kit.RateLimitError{RetryAfter: after}
	}

	var terr *tele.Error
	if errors.As(err, &terr) {
		desc := strings.ToLower(terr.Description)
		switch {
		case terr.Code == 403:
			// "bot was blocked by the user", "user is deactivated", ...
			return fmt.Errorf("%w: %s", kit.ErrRecipientGone, terr.Description)
		case terr.Code == 400 && strings.Contains(desc, "chat not found"):
			return fmt.Errorf("%w: %s", kit.ErrRecipientGone, terr.Description)
		case terr.Code == 400 && strings.Contains(desc, "message is not modified"):
			return kit.ErrContentUnchanged
		case terr.Code == 400 && (strings.Contains(desc, "message to edit not found") ||
			strings.Contains(desc, "message can't be edited")):
			return kit.ErrSurfaceNotFound
		}
	}
	return err
}
