package rates

import (
	"fmt"
	"strings"

	"kursbot/pkg/tgui"
)

// localePack holds the translated strings for one UI locale.
type localePack struct {
	digestTitle string
	listTitle   string
	asOfFmt     string
	unit        string
	source      string
	names       map[string]string
}

var packs = map[string]localePack{
	"en": {
		digestTitle: "Daily exchange rates",
		listTitle:   "Official exchange rates",
		asOfFmt:     "as of %s",
		unit:        "UZS",
		source:      "Source: Central Bank of Uzbekistan",
		names: map[string]string{
			"USD": "US Dollar",
			"EUR": "Euro",
			"RUB": "Russian Ruble",
		},
	},
	"ru": {
		digestTitle: "Курсы валют на сегодня",
		listTitle:   "Официальные курсы валют",
		asOfFmt:     "на %s",
		unit:        "сум",
		source:      "Источник: Центральный банк Узбекистана",
		names: map[string]string{
			"USD": "Доллар США",
			"EUR": "Евро",
			"RUB": "Российский рубль",
		},
	},
	"uz_cy": {
		digestTitle: "Бугунги валюта курслари",
		listTitle:   "Расмий валюта курслари",
		asOfFmt:     "%s ҳолатига",
		unit:        "сўм",
		source:      "Манба: Ўзбекистон Марказий банки",
		names: map[string]string{
			"USD": "АҚШ доллари",
			"EUR": "Евро",
			"RUB": "Россия рубли",
		},
	},
}

func pack(locale string) localePack {
	if p, ok := packs[locale]; ok {
		return p
	}
	return packs[DefaultLocale]
}

// NormalizeLocale maps arbitrary user input to a supported locale.
func NormalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	switch l {
	case "en", "ru", "uz_cy":
		return l
	case "uz", "uz-cyrl", "uz_cyrl":
		return "uz_cy"
	default:
		return DefaultLocale
	}
}

func trendMark(change float64) string {
	switch {
	case change > 0:
		return "📈"
	case change < 0:
		return "📉"
	default:
		return "➖"
	}
}

func fmtRate(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func fmtChange(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf(" (%+.2f)", v)
}

// renderDigest builds the daily digest body for one locale.
func (s *Service) renderDigest(locale string, bundle map[string]Trend) tgui.Message {
	p := pack(locale)

	date := ""
	for _, tr := range bundle {
		if tr.Date > date {
			date = tr.Date
		}
	}

	b := tgui.New().Title("💱", p.digestTitle)
	if date != "" {
		b.Line(fmt.Sprintf(p.asOfFmt, date))
	}
	b.Blank()
	for _, code := range DigestCurrencies {
		tr, ok := bundle[code]
		if !ok {
			continue
		}
		name := p.names[code]
		if name == "" {
			name = code
		}
		b.RawLine(trendMark(tr.Change) + " " + tgui.B(name).String() + ": " +
			tgui.Code("1 "+code+" = "+fmtRate(tr.Rate)+" "+p.unit).String() +
			tgui.Esc(fmtChange(tr.Change)).String())
	}
	b.Blank()
	b.Line(p.source)

	// One button into the interactive view; payload stays well under the
	// callback_data limit.
	kb := tgui.NewInline().
		Row(tgui.Btn("📊 "+p.listTitle, tgui.Data("rates", "top", ""))).
		Row(tgui.URLBtn("🏦 cbu.uz", "https://cbu.uz"))
	return b.Inline(kb).Build()
}

// RenderList builds one page of the full currency list for the interactive
// view. The window and page numbers come from the caller's paginator.
func RenderList(locale string, window []Trend, current, totalPages int) *tgui.Builder {
	p := pack(locale)

	b := tgui.New().Title("💱", p.listTitle)
	if len(window) > 0 && window[0].Date != "" {
		b.Line(fmt.Sprintf(p.asOfFmt, window[0].Date))
	}
	b.Blank()
	for _, tr := range window {
		b.RawLine(trendMark(tr.Change) + " " + tgui.B(tr.Code).String() + "  " +
			tgui.Code(fmtRate(tr.Rate)).String() + " " + tgui.Esc(p.unit).String() +
			tgui.Esc(fmtChange(tr.Change)).String())
	}
	if totalPages > 1 {
		b.Blank()
		b.Line(tgui.PageLabel(current, totalPages))
	}
	return b
}
