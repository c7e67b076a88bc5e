package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"kursbot/internal/storage"
	"kursbot/pkg/logx"
)

type memRepo struct {
	rates map[string]storage.CbuRate
	err   error
}

func newMemRepo() *memRepo { return &memRepo{rates: map[string]storage.CbuRate{}} }

func (m *memRepo) UpsertRate(ctx context.Context, r storage.CbuRate) error {
	if m.err != nil {
		return m.err
	}
	m.rates[r.Code+"|"+r.RateDate] = r
	return nil
}

func (m *memRepo) LatestByCode(ctx context.Context, code string) (storage.CbuRate, bool, error) {
	return storage.CbuRate{}, false, nil
}

func (m *memRepo) ByCodeAndDate(ctx context.Context, code, rateDate string) (storage.CbuRate, bool, error) {
	return storage.CbuRate{}, false, nil
}

func (m *memRepo) LatestAll(ctx context.Context) ([]storage.CbuRate, error) { return nil, nil }

const feedBody = `[
  {"Ccy":"USD","Nominal":"1","Rate":"12650.50","Diff":"50.50","Date":"29.08.2026"},
  {"Ccy":"EUR","Nominal":"1","Rate":"13680.00","Diff":"-20.00","Date":"29.08.2026"},
  {"Ccy":"JPY","Nominal":"10","Rate":"854.00","Diff":"1.20","Date":"29.08.2026"},
  {"Ccy":"XXX","Nominal":"1","Rate":"not-a-number","Diff":"","Date":"29.08.2026"},
  {"Ccy":"YYY","Nominal":"1","Rate":"5.00","Diff":"","Date":"bad-date"}
]`

func TestCollectParsesAndStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	repo := newMemRepo()
	svc := New(Config{URL: srv.URL}, repo, logx.Nop())

	stored, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stored != 3 {
		t.Fatalf("stored = %d, want 3 (malformed entries skipped)", stored)
	}

	usd, ok := repo.rates["USD|2026-08-29"]
	if !ok {
		t.Fatalf("USD not stored: %v", repo.rates)
	}
	if usd.Rate != 12650.50 {
		t.Fatalf("usd rate = %v", usd.Rate)
	}

	// Nominal 10 divides out to a per-unit rate.
	jpy := repo.rates["JPY|2026-08-29"]
	if jpy.Rate < 85.39 || jpy.Rate > 85.41 {
		t.Fatalf("jpy rate = %v, want 85.40", jpy.Rate)
	}
}

func TestCollectRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	repo := newMemRepo()
	svc := New(Config{URL: srv.URL, Attempts: 3, Backoff: time.Millisecond}, repo, logx.Nop())

	stored, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stored != 3 {
		t.Fatalf("stored = %d", stored)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestCollectGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := New(Config{URL: srv.URL, Attempts: 2, Backoff: time.Millisecond}, newMemRepo(), logx.Nop())
	if _, err := svc.Collect(context.Background()); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestCollectRejectsEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	svc := New(Config{URL: srv.URL}, newMemRepo(), logx.Nop())
	if _, err := svc.Collect(context.Background()); err == nil {
		t.Fatal("expected error for empty feed")
	}
}
