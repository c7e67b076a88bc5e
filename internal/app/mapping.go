package app

import (
	"kursbot/internal/collector"
	"kursbot/internal/config"
	"kursbot/internal/digest"
	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
)

// The config package exposes durations as strings; these helpers translate
// one section each into the subsystem's own Config type.

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapDigestConfig(cfg *config.Config) (digest.Config, error) {
	pause, err := config.ParseDurationField("digest.batch_pause", cfg.Digest.BatchPause)
	if err != nil {
		return digest.Config{}, err
	}
	every, err := config.ParseDurationField("digest.message_every", cfg.Digest.MessageEvery)
	if err != nil {
		return digest.Config{}, err
	}
	return digest.Config{
		BatchSize:      cfg.Digest.BatchSize,
		BatchPause:     pause,
		Pacer:          cfg.Digest.Pacer,
		MessagesPerSec: cfg.Digest.MessagesPerSec,
		MessageEvery:   every,
	}, nil
}

func mapCollectorConfig(cfg *config.Config) (collector.Config, error) {
	timeout, err := config.ParseDurationField("collector.timeout", cfg.Collector.Timeout)
	if err != nil {
		return collector.Config{}, err
	}
	backoff, err := config.ParseDurationField("collector.backoff", cfg.Collector.Backoff)
	if err != nil {
		return collector.Config{}, err
	}
	return collector.Config{
		URL:      cfg.Collector.URL,
		Timeout:  timeout,
		Attempts: cfg.Collector.Attempts,
		Backoff:  backoff,
	}, nil
}

func menuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "start", Description: "Subscribe to the daily digest"},
		{Command: "rates", Description: "Show current exchange rates"},
		{Command: "lang", Description: "Change language"},
		{Command: "subscribe", Description: "Resume the daily digest"},
		{Command: "unsubscribe", Description: "Pause the daily digest"},
	}
}
