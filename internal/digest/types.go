package digest

import (
	"context"
	"errors"
	"time"

	kit "kursbot/internal/transport"
)

// Outcome classifies one delivery attempt (including its bounded retry).
type Outcome int

const (
	// OutcomeSent: the message reached the channel.
	OutcomeSent Outcome = iota
	// OutcomeBlocked: the recipient is permanently unreachable and should be
	// unsubscribed.
	OutcomeBlocked
	// OutcomeFailed: any other failure; no retry, no subscription change.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SendResult is the tagged per-recipient result produced by the executor.
type SendResult struct {
	Recipient int64
	Outcome   Outcome
	Retried   bool
	Err       error
}

// BatchResult aggregates one coordinator pass over a batch.
type BatchResult struct {
	Sent    int
	Blocked int
	Failed  int
	// BlockedIDs feeds the reconciler after the batch resolves.
	BlockedIDs []int64
}

// LocaleStats breaks run counters down per locale group.
type LocaleStats struct {
	Total   int
	Sent    int
	Blocked int
	Failed  int
	Batches int
}

// RunStats is the aggregate result of one broadcast run.
// Invariant at completion: Sent + Blocked + Failed == Total.
type RunStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration

	Total   int
	Sent    int
	Blocked int
	Failed  int
	Batches int

	Locales map[string]*LocaleStats
}

func (st *RunStats) locale(name string) *LocaleStats {
	if st.Locales == nil {
		st.Locales = map[string]*LocaleStats{}
	}
	ls := st.Locales[name]
	if ls == nil {
		ls = &LocaleStats{}
		st.Locales[name] = ls
	}
	return ls
}

// Content is one locale's fully rendered digest message.
type Content struct {
	Text    string
	Options *kit.SendOptions
}

// ContentSource renders the digest body for one locale. Called once per
// locale per run; the result is immutable for the rest of the run.
type ContentSource interface {
	RenderDigest(ctx context.Context, locale string) (Content, error)
}

// SubscriberStore is the slice of the subscriber store the engine touches:
// one grouped read at run start, and per-recipient downgrade writes from the
// reconciler.
type SubscriberStore interface {
	ActiveGroupedByLocale(ctx context.Context) (map[string][]int64, error)
	Unsubscribe(ctx context.Context, tgUserID int64) error
}

// Sender delivers one message to one recipient on the external channel.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// Config tunes the delivery engine. Zero values fall back to defaults that
// match Telegram's published throughput limits.
type Config struct {
	// BatchSize bounds per-batch concurrency. Default 500.
	BatchSize int
	// BatchPause is the pacing delay between batches (skipped after the
	// last batch of a locale group). Default 1s.
	BatchPause time.Duration

	// Pacer selects the steady-state throughput bound shared by all
	// concurrent sends of a run: "bucket" (token bucket, default) or
	// "interval" (fixed per-send delay baseline).
	Pacer string
	// MessagesPerSec is the bucket refill rate. Default 25.
	MessagesPerSec int
	// MessageEvery is the fixed delay for the "interval" pacer. Default 100ms.
	MessageEvery time.Duration
}

// ErrRunInProgress is returned when a broadcast run is requested while a
// previous run has not finished.
var ErrRunInProgress = errors.New("digest: broadcast run already in progress")
