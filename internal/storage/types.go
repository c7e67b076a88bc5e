package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (the default and only driver)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Subscriber is one addressable recipient of the daily digest.
type Subscriber struct {
	TgUserID   int64
	Locale     string
	Subscribed bool
	CreatedAt  time.Time
}

// CbuRate is one central-bank reference rate for a (code, date) pair.
type CbuRate struct {
	Code      string
	Rate      float64
	RateDate  string // "2006-01-02"
	FetchedAt time.Time
}

// Dashboard is a pinned, editable rates message in one chat. LastHash is the
// content fingerprint of the text last confirmed on that surface.
type Dashboard struct {
	ID        int64
	ChatID    int64
	MessageID int
	LastHash  string
	UpdatedAt time.Time
}
