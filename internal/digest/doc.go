// Package digest implements the daily-digest broadcast engine.
//
// A run proceeds as: one grouped read of active subscribers (locale ->
// recipients), one render per locale, then strictly sequential batches.
// Within a batch every recipient is attempted concurrently; a shared pacer
// (token bucket by default) bounds the aggregate send rate toward the
// channel. Per-recipient results are a closed outcome set: sent, blocked
// (permanently unreachable, unsubscribed by the reconciler), or failed.
//
// Delivery is best-effort. Transient rate limits are retried exactly once
// using the channel-provided delay; everything else fails fast and is
// surfaced only through run statistics.
package digest
