package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "kursbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "kursbot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSubscriberGrouping(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	subs := st.Subscribers()

	seed := []struct {
		id     int64
		locale string
		on     bool
	}{
		{101, "ru", true},
		{102, "en", true},
		{103, "ru", true},
		{104, "uz_cy", false},
		{105, "ru", false},
	}
	for _, s := range seed {
		if _, err := subs.GetOrCreate(ctx, s.id, "uz_cy"); err != nil {
			t.Fatalf("GetOrCreate(%d): %v", s.id, err)
		}
		if err := subs.SetLocale(ctx, s.id, s.locale); err != nil {
			t.Fatalf("SetLocale(%d): %v", s.id, err)
		}
		if err := subs.SetSubscribed(ctx, s.id, s.on); err != nil {
			t.Fatalf("SetSubscribed(%d): %v", s.id, err)
		}
	}

	groups, err := subs.ActiveGroupedByLocale(ctx)
	if err != nil {
		t.Fatalf("ActiveGroupedByLocale: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 locale groups, got %d: %v", len(groups), groups)
	}
	if got := groups["ru"]; len(got) != 2 || got[0] != 101 || got[1] != 103 {
		t.Fatalf("ru group = %v", got)
	}
	if got := groups["en"]; len(got) != 1 || got[0] != 102 {
		t.Fatalf("en group = %v", got)
	}

	// Downgrading twice is a no-op success.
	if err := subs.SetSubscribed(ctx, 101, false); err != nil {
		t.Fatalf("first downgrade: %v", err)
	}
	if err := subs.SetSubscribed(ctx, 101, false); err != nil {
		t.Fatalf("second downgrade: %v", err)
	}
}

func TestRatesUpsertAndLatest(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	rates := st.Rates()

	fixed := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	for _, r := range []CbuRate{
		{Code: "USD", RateDate: "2026-08-27", Rate: 12580, FetchedAt: fixed},
		{Code: "USD", RateDate: "2026-08-28", Rate: 12610, FetchedAt: fixed},
		{Code: "EUR", RateDate: "2026-08-28", Rate: 14720, FetchedAt: fixed},
	} {
		if err := rates.UpsertRate(ctx, r); err != nil {
			t.Fatalf("UpsertRate(%s %s): %v", r.Code, r.RateDate, err)
		}
	}
	// Same (code, date) overwrites.
	if err := rates.UpsertRate(ctx, CbuRate{Code: "USD", RateDate: "2026-08-28", Rate: 12650, FetchedAt: fixed}); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	latest, ok, err := rates.LatestByCode(ctx, "USD")
	if err != nil || !ok {
		t.Fatalf("LatestByCode: ok=%v err=%v", ok, err)
	}
	if latest.RateDate != "2026-08-28" || latest.Rate != 12650 {
		t.Fatalf("latest USD = %+v", latest)
	}

	prev, ok, err := rates.ByCodeAndDate(ctx, "USD", "2026-08-27")
	if err != nil || !ok || prev.Rate != 12580 {
		t.Fatalf("ByCodeAndDate = %+v ok=%v err=%v", prev, ok, err)
	}

	if _, ok, err := rates.LatestByCode(ctx, "GBP"); err != nil || ok {
		t.Fatalf("missing code: ok=%v err=%v", ok, err)
	}

	all, err := rates.LatestAll(ctx)
	if err != nil {
		t.Fatalf("LatestAll: %v", err)
	}
	if len(all) != 2 || all[0].Code != "EUR" || all[1].Code != "USD" {
		t.Fatalf("LatestAll = %+v", all)
	}
}

func TestDashboardReplaceBinding(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dash := st.Dashboards()

	if _, ok, err := dash.GetByChat(ctx, 42); err != nil || ok {
		t.Fatalf("empty lookup: ok=%v err=%v", ok, err)
	}

	d, err := dash.Create(ctx, 42, 900, "hash-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := dash.UpdateHash(ctx, d.ID, "hash-b"); err != nil {
		t.Fatalf("UpdateHash: %v", err)
	}
	got, ok, err := dash.GetByChat(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("GetByChat: ok=%v err=%v", ok, err)
	}
	if got.LastHash != "hash-b" || got.MessageID != 900 {
		t.Fatalf("dashboard = %+v", got)
	}

	// The message was deleted: rebind surface and fingerprint together.
	if err := dash.ReplaceMessage(ctx, d.ID, 910, "hash-c"); err != nil {
		t.Fatalf("ReplaceMessage: %v", err)
	}
	got, _, _ = dash.GetByChat(ctx, 42)
	if got.MessageID != 910 || got.LastHash != "hash-c" {
		t.Fatalf("after replace = %+v", got)
	}
}
