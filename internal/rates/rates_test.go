package rates

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"kursbot/internal/storage"
	"kursbot/pkg/logx"
)

type fakeRepo struct {
	rates []storage.CbuRate
	err   error
}

func (f *fakeRepo) UpsertRate(ctx context.Context, r storage.CbuRate) error {
	f.rates = append(f.rates, r)
	return nil
}

func (f *fakeRepo) LatestByCode(ctx context.Context, code string) (storage.CbuRate, bool, error) {
	if f.err != nil {
		return storage.CbuRate{}, false, f.err
	}
	var best storage.CbuRate
	found := false
	for _, r := range f.rates {
		if r.Code != code {
			continue
		}
		if !found || r.RateDate > best.RateDate {
			best = r
			found = true
		}
	}
	return best, found, nil
}

func (f *fakeRepo) ByCodeAndDate(ctx context.Context, code, rateDate string) (storage.CbuRate, bool, error) {
	if f.err != nil {
		return storage.CbuRate{}, false, f.err
	}
	for _, r := range f.rates {
		if r.Code == code && r.RateDate == rateDate {
			return r, true, nil
		}
	}
	return storage.CbuRate{}, false, nil
}

func (f *fakeRepo) LatestAll(ctx context.Context) ([]storage.CbuRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]storage.CbuRate{}
	for _, r := range f.rates {
		if cur, ok := out[r.Code]; !ok || r.RateDate > cur.RateDate {
			out[r.Code] = r
		}
	}
	rs := make([]storage.CbuRate, 0, len(out))
	for _, r := range out {
		rs = append(rs, r)
	}
	return rs, nil
}

func seed() *fakeRepo {
	return &fakeRepo{rates: []storage.CbuRate{
		{Code: "USD", Rate: 12600.00, RateDate: "2026-08-28"},
		{Code: "USD", Rate: 12650.50, RateDate: "2026-08-29"},
		{Code: "EUR", Rate: 13700.00, RateDate: "2026-08-28"},
		{Code: "EUR", Rate: 13680.00, RateDate: "2026-08-29"},
		{Code: "RUB", Rate: 157.10, RateDate: "2026-08-29"},
		{Code: "JPY", Rate: 85.40, RateDate: "2026-08-29"},
	}}
}

func TestDailyBundleTrends(t *testing.T) {
	svc := New(seed(), logx.Nop())

	bundle, err := svc.DailyBundle(context.Background())
	if err != nil {
		t.Fatalf("DailyBundle: %v", err)
	}
	if len(bundle) != 3 {
		t.Fatalf("bundle size = %d, want 3", len(bundle))
	}

	usd := bundle["USD"]
	if usd.Rate != 12650.50 || usd.Date != "2026-08-29" {
		t.Fatalf("usd = %+v", usd)
	}
	if got := usd.Change; got < 50.49 || got > 50.51 {
		t.Fatalf("usd change = %v, want +50.50", got)
	}
	if eur := bundle["EUR"]; eur.Change > -19.99 || eur.Change < -20.01 {
		t.Fatalf("eur change = %v, want -20.00", eur.Change)
	}
	// RUB has no previous day row: change stays zero.
	if rub := bundle["RUB"]; rub.Change != 0 {
		t.Fatalf("rub change = %v, want 0", rub.Change)
	}
}

func TestDailyBundleEmptyStore(t *testing.T) {
	svc := New(&fakeRepo{}, logx.Nop())
	if _, err := svc.DailyBundle(context.Background()); !errors.Is(err, ErrNoRates) {
		t.Fatalf("err = %v, want ErrNoRates", err)
	}
}

func TestRenderDigestLocales(t *testing.T) {
	svc := New(seed(), logx.Nop())

	for _, locale := range Locales {
		c, err := svc.RenderDigest(context.Background(), locale)
		if err != nil {
			t.Fatalf("RenderDigest(%s): %v", locale, err)
		}
		if c.Text == "" {
			t.Fatalf("RenderDigest(%s): empty text", locale)
		}
		if c.Options == nil || c.Options.ParseMode != "HTML" {
			t.Fatalf("RenderDigest(%s): options = %+v", locale, c.Options)
		}
		if !strings.Contains(c.Text, "12650.50") {
			t.Fatalf("RenderDigest(%s): missing USD rate in %q", locale, c.Text)
		}
		if !strings.Contains(c.Text, packs[locale].digestTitle) {
			t.Fatalf("RenderDigest(%s): missing title", locale)
		}
		if !strings.Contains(c.Text, "📈") || !strings.Contains(c.Text, "📉") {
			t.Fatalf("RenderDigest(%s): missing trend marks in %q", locale, c.Text)
		}
		kb, ok := c.Options.ReplyMarkupAdapter.(*tele.ReplyMarkup)
		if !ok || len(kb.InlineKeyboard) != 2 {
			t.Fatalf("RenderDigest(%s): keyboard = %+v", locale, c.Options.ReplyMarkupAdapter)
		}
		if url := kb.InlineKeyboard[1][0].URL; url != "https://cbu.uz" {
			t.Fatalf("RenderDigest(%s): source button url = %q", locale, url)
		}
	}
}

func TestRenderDigestUnknownLocaleFallsBack(t *testing.T) {
	svc := New(seed(), logx.Nop())
	c, err := svc.RenderDigest(context.Background(), "fr")
	if err != nil {
		t.Fatalf("RenderDigest: %v", err)
	}
	if !strings.Contains(c.Text, packs[DefaultLocale].digestTitle) {
		t.Fatalf("fallback digest = %q", c.Text)
	}
}

func TestAllTrendsSortedWithChanges(t *testing.T) {
	svc := New(seed(), logx.Nop())
	all, err := svc.AllTrends(context.Background())
	if err != nil {
		t.Fatalf("AllTrends: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Code >= all[i].Code {
			t.Fatalf("not sorted: %s before %s", all[i-1].Code, all[i].Code)
		}
	}
}

func TestTopTrendsMajorsFirst(t *testing.T) {
	svc := New(seed(), logx.Nop())
	top, err := svc.TopTrends(context.Background(), 4)
	if err != nil {
		t.Fatalf("TopTrends: %v", err)
	}
	if len(top) != 4 {
		t.Fatalf("len = %d, want 4", len(top))
	}
	for i, want := range []string{"USD", "EUR", "RUB"} {
		if top[i].Code != want {
			t.Fatalf("top[%d] = %s, want %s", i, top[i].Code, want)
		}
	}
	if top[3].Code != "JPY" {
		t.Fatalf("top[3] = %s, want JPY", top[3].Code)
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"en":      "en",
		"RU":      "ru",
		"uz":      "uz_cy",
		"uz-Cyrl": "uz_cy",
		"":        DefaultLocale,
		"fr":      DefaultLocale,
	}
	for in, want := range cases {
		if got := NormalizeLocale(in); got != want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
