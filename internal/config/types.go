package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Digest    DigestConfig    `json:"digest"`
	Collector CollectorConfig `json:"collector,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DigestConfig tunes the broadcast delivery engine.
//
// All durations are Go duration strings (e.g. "500ms", "1s").
//
// Defaults (when fields are omitted/zero):
//   - batch_size: 500
//   - batch_pause: "1s"
//   - pacer: "bucket"
//   - messages_per_sec: 25
//   - message_every: "100ms"
type DigestConfig struct {
	BatchSize  int    `json:"batch_size,omitempty"`
	BatchPause string `json:"batch_pause,omitempty"`

	// Pacer is "bucket" (token bucket) or "interval" (fixed per-send delay).
	Pacer          string `json:"pacer,omitempty"`
	MessagesPerSec int    `json:"messages_per_sec,omitempty"`
	MessageEvery   string `json:"message_every,omitempty"`

	DefaultLocale string `json:"default_locale,omitempty"`
}

// CollectorConfig tunes the reference-rates collector.
type CollectorConfig struct {
	URL      string `json:"url,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Backoff  string `json:"backoff,omitempty"`
}

// SchedulerConfig controls the cron triggers.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`

	// DigestCron fires the daily broadcast; CollectCron refreshes rates.
	// Standard 5-field cron expressions.
	DigestCron  string `json:"digest_cron,omitempty"`
	CollectCron string `json:"collect_cron,omitempty"`
}

// Validate checks fields that would otherwise fail deep inside a subsystem.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	for _, field := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"digest.batch_pause", c.Digest.BatchPause},
		{"digest.message_every", c.Digest.MessageEvery},
		{"collector.timeout", c.Collector.Timeout},
		{"collector.backoff", c.Collector.Backoff},
	} {
		if _, err := ParseDurationField(field.path, field.raw); err != nil {
			return err
		}
	}
	if p := strings.TrimSpace(c.Digest.Pacer); p != "" && p != "bucket" && p != "interval" {
		return fmt.Errorf("digest.pacer: unknown pacer %q", c.Digest.Pacer)
	}
	if c.Digest.BatchSize < 0 {
		return errors.New("digest.batch_size must be >= 0")
	}
	if c.Digest.MessagesPerSec < 0 {
		return errors.New("digest.messages_per_sec must be >= 0")
	}
	return nil
}
