package digest

import (
	"context"

	logx "kursbot/pkg/logx"
)

// reconcile issues one subscription-downgrade write per blocked recipient.
// Best effort: a failed write is logged and swallowed; the next run will
// classify the recipient as blocked again and retry the downgrade.
func (s *Service) reconcile(ctx context.Context, blocked []int64) {
	for _, id := range blocked {
		if err := s.store.Unsubscribe(ctx, id); err != nil {
			s.log.Warn("unsubscribe of blocked recipient failed",
				logx.Int64("recipient", id), logx.Err(err))
			continue
		}
		s.log.Debug("blocked recipient unsubscribed", logx.Int64("recipient", id))
	}
}
