package digest

import (
	"context"
	"errors"
	"time"

	kit "kursbot/internal/transport"
	logx "kursbot/pkg/logx"
)

// sendOne delivers the digest to a single recipient and classifies the result.
//
// Policy: a rate-limit signal is retried exactly once after sleeping the
// server-provided delay; a second rate limit counts as failed (no unbounded
// retry under sustained limiting). Permanent recipient errors are never
// retried. Nothing here touches the subscriber store.
func (s *Service) sendOne(ctx context.Context, p pacer, recipient int64, content Content) SendResult {
	res := SendResult{Recipient: recipient}

	err := s.attempt(ctx, p, recipient, content)
	if err == nil {
		res.Outcome = OutcomeSent
		return res
	}

	rl, ok := kit.AsRateLimit(err)
	if !ok {
		res.Outcome = classifyFinal(err)
		res.Err = err
		return res
	}

	s.log.Debug("rate limited, retrying once",
		logx.Int64("recipient", recipient), logx.Duration("retry_after", rl.RetryAfter))
	if err := sleepCtx(ctx, rl.RetryAfter); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	res.Retried = true
	err = s.attempt(ctx, p, recipient, content)
	switch {
	case err == nil:
		res.Outcome = OutcomeSent
	case errors.Is(err, kit.ErrRecipientGone):
		res.Outcome = OutcomeBlocked
		res.Err = err
	default:
		// Includes a second rate-limit signal.
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return res
}

func (s *Service) attempt(ctx context.Context, p pacer, recipient int64, content Content) error {
	if err := p.Wait(ctx); err != nil {
		return err
	}
	_, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: recipient}, content.Text, content.Options)
	return err
}

func classifyFinal(err error) Outcome {
	if errors.Is(err, kit.ErrRecipientGone) {
		return OutcomeBlocked
	}
	return OutcomeFailed
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
