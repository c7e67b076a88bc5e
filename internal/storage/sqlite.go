package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "kursbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Subscribers() SubscriberRepo { return (*subscriberRepo)(s) }
func (s *sqliteStore) Rates() RatesRepo            { return (*ratesRepo)(s) }
func (s *sqliteStore) Dashboards() DashboardRepo   { return (*dashboardRepo)(s) }

// ---- subscribers ----

type subscriberRepo sqliteStore

func (r *subscriberRepo) GetOrCreate(ctx context.Context, tgUserID int64, defaultLocale string) (Subscriber, error) {
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = "uz_cy"
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers(tg_user_id, locale, subscribed, created_at)
		 VALUES(?,?,0,?)
		 ON CONFLICT(tg_user_id) DO NOTHING`,
		tgUserID, defaultLocale, now.Format(time.RFC3339),
	)
	if err != nil {
		return Subscriber{}, err
	}
	return r.get(ctx, tgUserID)
}

func (r *subscriberRepo) get(ctx context.Context, tgUserID int64) (Subscriber, error) {
	var (
		sub       Subscriber
		subscribe int
		created   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT tg_user_id, locale, subscribed, created_at FROM subscribers WHERE tg_user_id = ?`,
		tgUserID,
	).Scan(&sub.TgUserID, &sub.Locale, &subscribe, &created)
	if err != nil {
		return Subscriber{}, err
	}
	sub.Subscribed = subscribe != 0
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		sub.CreatedAt = t
	}
	return sub, nil
}

func (r *subscriberRepo) SetLocale(ctx context.Context, tgUserID int64, locale string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET locale = ? WHERE tg_user_id = ?`, locale, tgUserID)
	return err
}

func (r *subscriberRepo) SetSubscribed(ctx context.Context, tgUserID int64, subscribed bool) error {
	v := 0
	if subscribed {
		v = 1
	}
	// Downgrading an already-unsubscribed recipient is a no-op success.
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET subscribed = ? WHERE tg_user_id = ?`, v, tgUserID)
	return err
}

func (r *subscriberRepo) ActiveGroupedByLocale(ctx context.Context) (map[string][]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT locale, tg_user_id FROM subscribers
		 WHERE subscribed = 1
		 ORDER BY locale, tg_user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := map[string][]int64{}
	for rows.Next() {
		var (
			locale string
			id     int64
		)
		if err := rows.Scan(&locale, &id); err != nil {
			return nil, err
		}
		groups[locale] = append(groups[locale], id)
	}
	return groups, rows.Err()
}

// ---- cbu rates ----

type ratesRepo sqliteStore

func (r *ratesRepo) UpsertRate(ctx context.Context, c CbuRate) error {
	if c.FetchedAt.IsZero() {
		c.FetchedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cbu_rates(code, rate_date, rate, fetched_at) VALUES(?,?,?,?)
		 ON CONFLICT(code, rate_date) DO UPDATE SET rate=excluded.rate, fetched_at=excluded.fetched_at`,
		c.Code, c.RateDate, c.Rate, c.FetchedAt.Format(time.RFC3339),
	)
	return err
}

func (r *ratesRepo) LatestByCode(ctx context.Context, code string) (CbuRate, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT code, rate_date, rate, fetched_at FROM cbu_rates
		 WHERE code = ? ORDER BY rate_date DESC LIMIT 1`, code)
	return scanRate(row)
}

func (r *ratesRepo) ByCodeAndDate(ctx context.Context, code, rateDate string) (CbuRate, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT code, rate_date, rate, fetched_at FROM cbu_rates
		 WHERE code = ? AND rate_date = ?`, code, rateDate)
	return scanRate(row)
}

// LatestAll returns the most recent rate per code, ordered by code.
func (r *ratesRepo) LatestAll(ctx context.Context) ([]CbuRate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, rate_date, rate, fetched_at FROM cbu_rates
		 WHERE (code, rate_date) IN (
		     SELECT code, MAX(rate_date) FROM cbu_rates GROUP BY code
		 )
		 ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CbuRate
	for rows.Next() {
		var (
			c       CbuRate
			fetched string
		)
		if err := rows.Scan(&c.Code, &c.RateDate, &c.Rate, &fetched); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339, fetched); perr == nil {
			c.FetchedAt = t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRate(row *sql.Row) (CbuRate, bool, error) {
	var (
		c       CbuRate
		fetched string
	)
	err := row.Scan(&c.Code, &c.RateDate, &c.Rate, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return CbuRate{}, false, nil
	}
	if err != nil {
		return CbuRate{}, false, err
	}
	if t, perr := time.Parse(time.RFC3339, fetched); perr == nil {
		c.FetchedAt = t
	}
	return c, true, nil
}

// ---- dashboards ----

type dashboardRepo sqliteStore

func (r *dashboardRepo) GetByChat(ctx context.Context, chatID int64) (Dashboard, bool, error) {
	var (
		d       Dashboard
		hash    sql.NullString
		updated string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, message_id, last_hash, updated_at FROM dashboards WHERE chat_id = ?`,
		chatID,
	).Scan(&d.ID, &d.ChatID, &d.MessageID, &hash, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Dashboard{}, false, nil
	}
	if err != nil {
		return Dashboard{}, false, err
	}
	d.LastHash = hash.String
	if t, perr := time.Parse(time.RFC3339, updated); perr == nil {
		d.UpdatedAt = t
	}
	return d, true, nil
}

func (r *dashboardRepo) Create(ctx context.Context, chatID int64, messageID int, hash string) (Dashboard, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO dashboards(chat_id, message_id, last_hash, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET message_id=excluded.message_id, last_hash=excluded.last_hash, updated_at=excluded.updated_at`,
		chatID, messageID, nullStr(hash), now.Format(time.RFC3339),
	)
	if err != nil {
		return Dashboard{}, err
	}
	id, _ := res.LastInsertId()
	if id == 0 {
		if d, ok, gerr := r.GetByChat(ctx, chatID); gerr == nil && ok {
			return d, nil
		}
	}
	return Dashboard{ID: id, ChatID: chatID, MessageID: messageID, LastHash: hash, UpdatedAt: now}, nil
}

func (r *dashboardRepo) UpdateHash(ctx context.Context, id int64, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dashboards SET last_hash = ?, updated_at = ? WHERE id = ?`,
		nullStr(hash), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *dashboardRepo) ReplaceMessage(ctx context.Context, id int64, newMessageID int, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dashboards SET message_id = ?, last_hash = ?, updated_at = ? WHERE id = ?`,
		newMessageID, nullStr(hash), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
