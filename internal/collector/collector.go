package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kursbot/internal/storage"
	logx "kursbot/pkg/logx"
)

// DefaultURL is the Central Bank of Uzbekistan daily rates feed.
const DefaultURL = "https://cbu.uz/uz/arkhiv-kursov-valyut/json/"

const (
	defaultTimeout  = 15 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	maxBodySize     = 4 << 20
)

// Config tunes the rates collector.
type Config struct {
	URL      string
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// cbuRate is one entry of the bank's JSON feed. Rate and Diff arrive as
// decimal strings, Date as DD.MM.YYYY.
type cbuRate struct {
	Ccy     string `json:"Ccy"`
	Nominal string `json:"Nominal"`
	Rate    string `json:"Rate"`
	Diff    string `json:"Diff"`
	Date    string `json:"Date"`
}

// Service fetches the bank feed and upserts every currency into the store.
type Service struct {
	cfg    Config
	client *http.Client
	repo   storage.RatesRepo
	log    logx.Logger

	now func() time.Time
}

func New(cfg Config, repo storage.RatesRepo, log logx.Logger) *Service {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		repo:   repo,
		log:    log,
		now:    time.Now,
	}
}

// Collect fetches the feed with bounded retry and stores every parsed rate.
// Individual malformed entries are skipped; the run fails only when the feed
// itself cannot be fetched or yields nothing usable.
func (s *Service) Collect(ctx context.Context) (int, error) {
	var (
		rows []cbuRate
		err  error
	)
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		rows, err = s.fetch(ctx)
		if err == nil {
			break
		}
		s.log.Warn("rates fetch failed",
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", s.cfg.Attempts),
			logx.Err(err))
		if attempt == s.cfg.Attempts {
			return 0, fmt.Errorf("fetch rates: %w", err)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.cfg.Backoff * time.Duration(attempt)):
		}
	}

	fetchedAt := s.now().UTC()
	stored := 0
	for _, row := range rows {
		r, ok := s.parse(row, fetchedAt)
		if !ok {
			continue
		}
		if err := s.repo.UpsertRate(ctx, r); err != nil {
			return stored, fmt.Errorf("store rate %s: %w", r.Code, err)
		}
		stored++
	}
	if stored == 0 {
		return 0, fmt.Errorf("rates feed yielded no usable entries (%d raw)", len(rows))
	}
	s.log.Info("rates collected", logx.Int("stored", stored), logx.Int("raw", len(rows)))
	return stored, nil
}

func (s *Service) fetch(ctx context.Context) ([]cbuRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	var rows []cbuRate
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rates feed: %w", err)
	}
	return rows, nil
}

// parse normalizes one feed entry. Rates are per one unit of currency, so
// the nominal divides out.
func (s *Service) parse(row cbuRate, fetchedAt time.Time) (storage.CbuRate, bool) {
	code := strings.ToUpper(strings.TrimSpace(row.Ccy))
	if code == "" {
		return storage.CbuRate{}, false
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(row.Rate), 64)
	if err != nil || rate <= 0 {
		s.log.Debug("skipping malformed rate", logx.String("code", code), logx.String("raw", row.Rate))
		return storage.CbuRate{}, false
	}
	if nom, err := strconv.ParseFloat(strings.TrimSpace(row.Nominal), 64); err == nil && nom > 1 {
		rate /= nom
	}
	date, err := time.Parse("02.01.2006", strings.TrimSpace(row.Date))
	if err != nil {
		s.log.Debug("skipping rate with bad date", logx.String("code", code), logx.String("raw", row.Date))
		return storage.CbuRate{}, false
	}
	return storage.CbuRate{
		Code:      code,
		Rate:      rate,
		RateDate:  date.Format("2006-01-02"),
		FetchedAt: fetchedAt,
	}, true
}
