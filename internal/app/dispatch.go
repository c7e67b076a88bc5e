package app

import (
	"context"
	"strings"
	"time"

	"kursbot/internal/digest"
	"kursbot/internal/rates"
	kit "kursbot/internal/transport"
	"kursbot/internal/view"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

const handlerTimeout = 30 * time.Second

func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			a.handle(ctx, up)
		}
	}
}

func (a *App) handle(ctx context.Context, up kit.Update) {
	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var err error
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			err = a.handleMessage(hctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			err = a.handleCallback(hctx, up.Callback)
		}
	}
	if err != nil {
		a.log.Warn("update handling failed", logx.String("kind", string(up.Kind)), logx.Err(err))
	}
}

func (a *App) handleMessage(ctx context.Context, m *kit.Message) error {
	cmd, _ := splitCommand(m.Text)
	if cmd == "" {
		return nil
	}

	switch cmd {
	case "/start":
		return a.cmdStart(ctx, m)
	case "/subscribe":
		return a.cmdSetSubscribed(ctx, m, true)
	case "/unsubscribe", "/stop":
		return a.cmdSetSubscribed(ctx, m, false)
	case "/lang":
		return a.cmdLang(ctx, m)
	case "/rates":
		return a.cmdRates(ctx, m)
	case "/digest_now":
		return a.cmdDigestNow(ctx, m)
	case "/collect_now":
		return a.cmdCollectNow(ctx, m)
	default:
		return nil
	}
}

func (a *App) handleCallback(ctx context.Context, cb *kit.Callback) error {
	ns, _, _ := tgui.Split(cb.Data)
	switch ns {
	case view.Namespace:
		sub, err := a.store.Subscribers().GetOrCreate(ctx, cb.FromID, rates.DefaultLocale)
		if err != nil {
			return err
		}
		return a.view.HandleCallback(ctx, cb, sub.Locale)
	case "lang":
		return a.cbSetLang(ctx, cb)
	default:
		return nil
	}
}

func (a *App) cmdStart(ctx context.Context, m *kit.Message) error {
	sub, err := a.store.Subscribers().GetOrCreate(ctx, m.FromID, rates.DefaultLocale)
	if err != nil {
		return err
	}
	if !sub.Subscribed {
		if err := a.store.Subscribers().SetSubscribed(ctx, m.FromID, true); err != nil {
			return err
		}
	}
	msg := tgui.New().
		Title("👋", t(sub.Locale, "welcome_title")).
		Blank().
		Line(t(sub.Locale, "welcome_body")).
		Build()
	_, err = msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

func (a *App) cmdSetSubscribed(ctx context.Context, m *kit.Message, on bool) error {
	sub, err := a.store.Subscribers().GetOrCreate(ctx, m.FromID, rates.DefaultLocale)
	if err != nil {
		return err
	}
	if err := a.store.Subscribers().SetSubscribed(ctx, m.FromID, on); err != nil {
		return err
	}
	key := "unsubscribed"
	if on {
		key = "subscribed"
	}
	msg := tgui.New().Line(t(sub.Locale, key)).Build()
	_, err = msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

func (a *App) cmdLang(ctx context.Context, m *kit.Message) error {
	sub, err := a.store.Subscribers().GetOrCreate(ctx, m.FromID, rates.DefaultLocale)
	if err != nil {
		return err
	}
	kb := tgui.NewInline().
		Row(
			tgui.Btn("English", tgui.Data("lang", "set", "en")),
			tgui.Btn("Русский", tgui.Data("lang", "set", "ru")),
			tgui.Btn("Ўзбекча", tgui.Data("lang", "set", "uz_cy")),
		)
	msg := tgui.New().Line(t(sub.Locale, "choose_lang")).Inline(kb).Build()
	_, err = msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

func (a *App) cbSetLang(ctx context.Context, cb *kit.Callback) error {
	_, action, payload := tgui.Split(cb.Data)
	if action != "set" {
		return a.adapter.AnswerCallback(ctx, cb.ID, "")
	}
	locale := rates.NormalizeLocale(payload)
	if _, err := a.store.Subscribers().GetOrCreate(ctx, cb.FromID, locale); err != nil {
		return err
	}
	if err := a.store.Subscribers().SetLocale(ctx, cb.FromID, locale); err != nil {
		return err
	}
	return a.adapter.AnswerCallback(ctx, cb.ID, t(locale, "lang_set"))
}

func (a *App) cmdRates(ctx context.Context, m *kit.Message) error {
	sub, err := a.store.Subscribers().GetOrCreate(ctx, m.FromID, rates.DefaultLocale)
	if err != nil {
		return err
	}
	return a.view.Show(ctx, m.ChatID, sub.Locale)
}

// cmdDigestNow triggers a full broadcast outside the schedule. Owner only.
func (a *App) cmdDigestNow(ctx context.Context, m *kit.Message) error {
	if !a.owners[m.FromID] {
		return nil
	}
	// Detach from the handler timeout: a full run over a large subscriber
	// base legitimately takes minutes.
	go func() {
		stats, err := a.engine.Run(context.WithoutCancel(ctx))
		if err != nil {
			a.log.Warn("manual digest run failed", logx.Err(err))
			a.notifyOwner(m.ChatID, "Digest run failed: "+err.Error())
			return
		}
		a.notifyOwner(m.ChatID, formatRunStats(stats))
	}()
	msg := tgui.New().Line("Digest run started.").Build()
	_, err := msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

// cmdCollectNow refreshes rates outside the schedule. Owner only.
func (a *App) cmdCollectNow(ctx context.Context, m *kit.Message) error {
	if !a.owners[m.FromID] {
		return nil
	}
	stored, err := a.coll.Collect(ctx)
	if err != nil {
		msg := tgui.New().Line("Collect failed: " + err.Error()).Build()
		_, serr := msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
		if serr != nil {
			return serr
		}
		return nil
	}
	msg := tgui.New().KV("Rates stored", itoa(stored)).Build()
	_, err = msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: m.ChatID})
	return err
}

func (a *App) notifyOwner(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msg := tgui.New().Line(text).Build()
	if _, err := msg.Send(ctx, a.adapter, kit.ChatTarget{ChatID: chatID}); err != nil {
		a.log.Warn("owner notification failed", logx.Err(err))
	}
}

func formatRunStats(st *digest.RunStats) string {
	if st == nil {
		return "Digest run finished."
	}
	return "Digest done: " +
		itoa(st.Sent) + " sent, " +
		itoa(st.Blocked) + " blocked, " +
		itoa(st.Failed) + " failed of " +
		itoa(st.Total) + " in " + st.Duration.Round(time.Second).String()
}

// splitCommand extracts "/cmd" from a message, stripping a "@botname" suffix.
func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd = text
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		cmd, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), args
}
