package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"kursbot/internal/digest"
	"kursbot/internal/storage"
	logx "kursbot/pkg/logx"
)

// DigestCurrencies are the codes that appear in the daily digest body.
var DigestCurrencies = []string{"USD", "EUR", "RUB"}

// Locales is the closed set of supported UI locales.
var Locales = []string{"en", "ru", "uz_cy"}

const DefaultLocale = "uz_cy"

// ErrNoRates means the store has no reference rates to render yet.
var ErrNoRates = errors.New("rates: no rates data available")

// Trend is one currency's latest rate plus its day-over-day change.
type Trend struct {
	Code   string
	Rate   float64
	Change float64
	Date   string
}

// Service reads reference rates from the store and renders digest and list
// views. It is the digest engine's content source.
type Service struct {
	repo storage.RatesRepo
	log  logx.Logger

	now func() time.Time
}

func New(repo storage.RatesRepo, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

// DailyBundle loads the latest rate and day-over-day change for the digest
// currencies. Codes without data are skipped; an entirely empty bundle is
// ErrNoRates.
func (s *Service) DailyBundle(ctx context.Context) (map[string]Trend, error) {
	bundle := make(map[string]Trend, len(DigestCurrencies))
	for _, code := range DigestCurrencies {
		latest, ok, err := s.repo.LatestByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("latest rate for %s: %w", code, err)
		}
		if !ok {
			continue
		}
		tr := Trend{Code: code, Rate: latest.Rate, Date: latest.RateDate}
		if prev := previousDate(latest.RateDate); prev != "" {
			if p, ok, err := s.repo.ByCodeAndDate(ctx, code, prev); err == nil && ok {
				tr.Change = latest.Rate - p.Rate
			}
		}
		bundle[code] = tr
	}
	if len(bundle) == 0 {
		return nil, ErrNoRates
	}
	return bundle, nil
}

// RenderDigest renders the daily digest for one locale.
func (s *Service) RenderDigest(ctx context.Context, locale string) (digest.Content, error) {
	bundle, err := s.DailyBundle(ctx)
	if err != nil {
		return digest.Content{}, err
	}
	msg := s.renderDigest(locale, bundle)
	return digest.Content{Text: msg.Text, Options: msg.Opt}, nil
}

// AllTrends returns every tracked currency's latest rate with change,
// ordered by code. Backs the paginated interactive list.
func (s *Service) AllTrends(ctx context.Context) ([]Trend, error) {
	all, err := s.repo.LatestAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoRates
	}

	out := make([]Trend, 0, len(all))
	for _, r := range all {
		tr := Trend{Code: r.Code, Rate: r.Rate, Date: r.RateDate}
		if prev := previousDate(r.RateDate); prev != "" {
			if p, ok, err := s.repo.ByCodeAndDate(ctx, r.Code, prev); err == nil && ok {
				tr.Change = r.Rate - p.Rate
			}
		}
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// TopTrends returns the major currencies first (digest order), then fills up
// to limit from the remaining codes.
func (s *Service) TopTrends(ctx context.Context, limit int) ([]Trend, error) {
	all, err := s.AllTrends(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	byCode := make(map[string]Trend, len(all))
	for _, tr := range all {
		byCode[tr.Code] = tr
	}
	out := make([]Trend, 0, limit)
	taken := map[string]bool{}
	for _, code := range DigestCurrencies {
		if tr, ok := byCode[code]; ok && len(out) < limit {
			out = append(out, tr)
			taken[code] = true
		}
	}
	for _, tr := range all {
		if len(out) >= limit {
			break
		}
		if !taken[tr.Code] {
			out = append(out, tr)
		}
	}
	return out, nil
}

func previousDate(rateDate string) string {
	t, err := time.Parse("2006-01-02", rateDate)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}
