package storage

import (
	"context"
	"errors"
	"strings"

	logx "kursbot/pkg/logx"
)

// SubscriberRepo owns the subscribers table.
type SubscriberRepo interface {
	GetOrCreate(ctx context.Context, tgUserID int64, defaultLocale string) (Subscriber, error)
	SetLocale(ctx context.Context, tgUserID int64, locale string) error
	SetSubscribed(ctx context.Context, tgUserID int64, subscribed bool) error
	// ActiveGroupedByLocale returns subscribed recipients partitioned by
	// locale, each bucket ordered by user id. Empty result is not an error.
	ActiveGroupedByLocale(ctx context.Context) (map[string][]int64, error)
}

// RatesRepo owns the cbu_rates table.
type RatesRepo interface {
	UpsertRate(ctx context.Context, r CbuRate) error
	LatestByCode(ctx context.Context, code string) (CbuRate, bool, error)
	ByCodeAndDate(ctx context.Context, code, rateDate string) (CbuRate, bool, error)
	LatestAll(ctx context.Context) ([]CbuRate, error)
}

// DashboardRepo owns the dashboards table (one editable surface per chat).
type DashboardRepo interface {
	GetByChat(ctx context.Context, chatID int64) (Dashboard, bool, error)
	Create(ctx context.Context, chatID int64, messageID int, hash string) (Dashboard, error)
	UpdateHash(ctx context.Context, id int64, hash string) error
	// ReplaceMessage atomically rebinds the dashboard to a new message id
	// together with the fingerprint of the content it now shows.
	ReplaceMessage(ctx context.Context, id int64, newMessageID int, hash string) error
}

// Store is the persistence API used by the rest of the bot.
type Store interface {
	Subscribers() SubscriberRepo
	Rates() RatesRepo
	Dashboards() DashboardRepo
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
