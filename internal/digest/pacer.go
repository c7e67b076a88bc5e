package digest

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMessagesPerSec = 25
	defaultMessageEvery   = 100 * time.Millisecond
)

// pacer bounds the aggregate send rate of a run. It is shared by every
// concurrent executor of the run; Wait blocks until the next send may go out.
type pacer interface {
	Wait(ctx context.Context) error
}

// bucketPacer is the default: a token bucket shared across all concurrent
// sends, replacing the fixed per-send sleeps with a live rate controller.
type bucketPacer struct {
	lim *rate.Limiter
}

func (p *bucketPacer) Wait(ctx context.Context) error { return p.lim.Wait(ctx) }

// intervalPacer is the static-delay baseline: a fixed gap between consecutive
// sends, serialized across the run.
type intervalPacer struct {
	mu    sync.Mutex
	every time.Duration
	next  time.Time
}

func (p *intervalPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.every)
	p.mu.Unlock()

	d := time.Until(at)
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

func newPacer(cfg Config) pacer {
	switch strings.ToLower(strings.TrimSpace(cfg.Pacer)) {
	case "interval":
		every := cfg.MessageEvery
		if every <= 0 {
			every = defaultMessageEvery
		}
		return &intervalPacer{every: every}
	default:
		rps := cfg.MessagesPerSec
		if rps <= 0 {
			rps = defaultMessagesPerSec
		}
		return &bucketPacer{lim: rate.NewLimiter(rate.Limit(rps), rps)}
	}
}
