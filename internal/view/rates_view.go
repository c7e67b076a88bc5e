package view

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"kursbot/internal/rates"
	kit "kursbot/internal/transport"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

// Namespace prefixes every callback emitted by the rates view.
const Namespace = "rates"

const (
	actionTop  = "top"
	actionPage = "page"

	defaultTopLimit = 5
	defaultPageSize = 10
)

var viewLabels = map[string]struct {
	showAll string
	showTop string
}{
	"en":    {showAll: "All currencies", showTop: "Back to top"},
	"ru":    {showAll: "Все валюты", showTop: "Основные"},
	"uz_cy": {showAll: "Барча валюталар", showTop: "Асосийлари"},
}

func labels(locale string) struct{ showAll, showTop string } {
	if l, ok := viewLabels[locale]; ok {
		return l
	}
	return viewLabels[rates.DefaultLocale]
}

// RatesView is the interactive per-chat rates dashboard: a compact view of
// the major currencies that expands into a paginated list of every tracked
// code. All transitions edit the same message through the SafeEditor.
type RatesView struct {
	rates  *rates.Service
	editor *SafeEditor
	ad     kit.Adapter
	log    logx.Logger

	topLimit int
	pageSize int
}

func NewRatesView(svc *rates.Service, editor *SafeEditor, ad kit.Adapter, log logx.Logger) *RatesView {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RatesView{
		rates:    svc,
		editor:   editor,
		ad:       ad,
		log:      log,
		topLimit: defaultTopLimit,
		pageSize: defaultPageSize,
	}
}

// Show renders (or refreshes) the compact top view in the chat.
func (v *RatesView) Show(ctx context.Context, chatID int64, locale string) error {
	msg, err := v.renderTop(ctx, locale)
	if err != nil {
		return err
	}
	_, err = v.editor.Apply(ctx, chatID, msg)
	return err
}

// HandleCallback processes one "rates:*" button press. Callbacks outside the
// namespace are ignored.
func (v *RatesView) HandleCallback(ctx context.Context, cb *kit.Callback, locale string) error {
	ns, action, payload := tgui.Split(cb.Data)
	if ns != Namespace {
		return nil
	}

	var (
		msg tgui.Message
		err error
	)
	switch action {
	case actionTop:
		msg, err = v.renderTop(ctx, locale)
	case actionPage:
		page, _ := strconv.Atoi(payload)
		msg, err = v.renderPage(ctx, locale, page)
	default:
		return v.ad.AnswerCallback(ctx, cb.ID, "")
	}
	if err != nil {
		v.log.Warn("rates view render failed", logx.String("action", action), logx.Err(err))
		return v.ad.AnswerCallback(ctx, cb.ID, "⚠️")
	}

	if _, err := v.editor.Apply(ctx, cb.ChatID, msg); err != nil {
		return err
	}
	return v.ad.AnswerCallback(ctx, cb.ID, "")
}

func (v *RatesView) renderTop(ctx context.Context, locale string) (tgui.Message, error) {
	top, err := v.rates.TopTrends(ctx, v.topLimit)
	if err != nil {
		return tgui.Message{}, err
	}
	b := rates.RenderList(locale, top, 1, 1)

	kb := tgui.NewInline().
		Row(tgui.Btn(labels(locale).showAll, tgui.Data(Namespace, actionPage, "1")))
	return b.Inline(kb).Build(), nil
}

func (v *RatesView) renderPage(ctx context.Context, locale string, page int) (tgui.Message, error) {
	all, err := v.rates.AllTrends(ctx)
	if err != nil {
		return tgui.Message{}, err
	}
	window, current, totalPages := tgui.Paginate(all, page, v.pageSize)
	b := rates.RenderList(locale, window, current, totalPages)

	kb := tgui.NewInline()
	var row []tele.Btn
	if tgui.HasPrev(current) {
		row = append(row, tgui.Btn("⬅️", tgui.Data(Namespace, actionPage, strconv.Itoa(current-1))))
	}
	if tgui.HasNext(current, totalPages) {
		row = append(row, tgui.Btn("➡️", tgui.Data(Namespace, actionPage, strconv.Itoa(current+1))))
	}
	if len(row) > 0 {
		kb.Row(row...)
	}
	kb.Row(tgui.Btn(labels(locale).showTop, tgui.Data(Namespace, actionTop, "")))
	return b.Inline(kb).Build(), nil
}
