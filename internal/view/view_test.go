package view

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"kursbot/internal/rates"
	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
	"kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

type fakeAdapter struct {
	nextMsgID int
	sends     []string
	edits     []string
	editErr   error
	answers   []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.nextMsgID++
	f.sends = append(f.sends, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextMsgID}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.answers = append(f.answers, callbackID)
	return nil
}

type fakeDashRepo struct {
	byChat map[int64]storage.Dashboard
	nextID int64
}

func newFakeDashRepo() *fakeDashRepo { return &fakeDashRepo{byChat: map[int64]storage.Dashboard{}} }

func (f *fakeDashRepo) GetByChat(ctx context.Context, chatID int64) (storage.Dashboard, bool, error) {
	d, ok := f.byChat[chatID]
	return d, ok, nil
}

func (f *fakeDashRepo) Create(ctx context.Context, chatID int64, messageID int, hash string) (storage.Dashboard, error) {
	f.nextID++
	d := storage.Dashboard{ID: f.nextID, ChatID: chatID, MessageID: messageID, LastHash: hash}
	f.byChat[chatID] = d
	return d, nil
}

func (f *fakeDashRepo) UpdateHash(ctx context.Context, id int64, hash string) error {
	for chat, d := range f.byChat {
		if d.ID == id {
			d.LastHash = hash
			f.byChat[chat] = d
		}
	}
	return nil
}

func (f *fakeDashRepo) ReplaceMessage(ctx context.Context, id int64, newMessageID int, hash string) error {
	for chat, d := range f.byChat {
		if d.ID == id {
			d.MessageID = newMessageID
			d.LastHash = hash
			f.byChat[chat] = d
		}
	}
	return nil
}

func msg(text string) tgui.Message {
	return tgui.New().Line(text).Build()
}

func TestApplyCreatesThenSkips(t *testing.T) {
	ad := &fakeAdapter{}
	repo := newFakeDashRepo()
	ed := NewSafeEditor(ad, repo, logx.Nop())

	changed, err := ed.Apply(context.Background(), 42, msg("hello"))
	if err != nil || !changed {
		t.Fatalf("first apply: changed=%v err=%v", changed, err)
	}
	if len(ad.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(ad.sends))
	}
	if d := repo.byChat[42]; d.MessageID != 1 || d.LastHash == "" {
		t.Fatalf("dashboard = %+v", d)
	}

	// Same content again: short-circuits before the adapter.
	changed, err = ed.Apply(context.Background(), 42, msg("hello"))
	if err != nil || changed {
		t.Fatalf("second apply: changed=%v err=%v", changed, err)
	}
	if len(ad.sends) != 1 || len(ad.edits) != 0 {
		t.Fatalf("unexpected network calls: sends=%d edits=%d", len(ad.sends), len(ad.edits))
	}
}

func TestApplyEditsOnChange(t *testing.T) {
	ad := &fakeAdapter{}
	repo := newFakeDashRepo()
	ed := NewSafeEditor(ad, repo, logx.Nop())

	if _, err := ed.Apply(context.Background(), 42, msg("v1")); err != nil {
		t.Fatal(err)
	}
	changed, err := ed.Apply(context.Background(), 42, msg("v2"))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if len(ad.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(ad.edits))
	}
	if repo.byChat[42].LastHash != Fingerprint(msg("v2")) {
		t.Fatal("hash not updated after edit")
	}
}

func TestApplyPersistsHashOnPlatformUnchanged(t *testing.T) {
	ad := &fakeAdapter{editErr: kit.ErrContentUnchanged}
	repo := newFakeDashRepo()
	ed := NewSafeEditor(ad, repo, logx.Nop())

	// Seed a binding with a stale hash so Apply goes through the adapter.
	_, _ = repo.Create(context.Background(), 42, 1, "stale")

	changed, err := ed.Apply(context.Background(), 42, msg("same as shown"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed {
		t.Fatal("platform-unchanged edit must report changed=false")
	}
	if repo.byChat[42].LastHash != Fingerprint(msg("same as shown")) {
		t.Fatal("fingerprint must be persisted even when platform reports no change")
	}
}

func TestApplyReplacesDeletedMessage(t *testing.T) {
	ad := &fakeAdapter{editErr: kit.ErrSurfaceNotFound}
	repo := newFakeDashRepo()
	ed := NewSafeEditor(ad, repo, logx.Nop())

	_, _ = repo.Create(context.Background(), 42, 7, "stale")

	changed, err := ed.Apply(context.Background(), 42, msg("fresh"))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if len(ad.sends) != 1 {
		t.Fatalf("sends = %d, want replacement send", len(ad.sends))
	}
	d := repo.byChat[42]
	if d.MessageID == 7 {
		t.Fatal("binding not rebound to the replacement message")
	}
	if d.LastHash != Fingerprint(msg("fresh")) {
		t.Fatal("hash not updated on rebinding")
	}
}

func seedRates(n int) *rates.Service {
	repo := &memRates{}
	for i := 0; i < n; i++ {
		repo.rates = append(repo.rates, storage.CbuRate{
			Code:     fmt.Sprintf("C%02d", i),
			Rate:     float64(100 + i),
			RateDate: "2026-08-29",
		})
	}
	return rates.New(repo, logx.Nop())
}

type memRates struct {
	rates []storage.CbuRate
}

func (m *memRates) UpsertRate(ctx context.Context, r storage.CbuRate) error { return nil }

func (m *memRates) LatestByCode(ctx context.Context, code string) (storage.CbuRate, bool, error) {
	for _, r := range m.rates {
		if r.Code == code {
			return r, true, nil
		}
	}
	return storage.CbuRate{}, false, nil
}

func (m *memRates) ByCodeAndDate(ctx context.Context, code, rateDate string) (storage.CbuRate, bool, error) {
	return storage.CbuRate{}, false, nil
}

func (m *memRates) LatestAll(ctx context.Context) ([]storage.CbuRate, error) {
	return append([]storage.CbuRate(nil), m.rates...), nil
}

func TestRatesViewPagination(t *testing.T) {
	ad := &fakeAdapter{}
	repo := newFakeDashRepo()
	v := NewRatesView(seedRates(23), NewSafeEditor(ad, repo, logx.Nop()), ad, logx.Nop())

	// First show creates the dashboard message with the compact view.
	if err := v.Show(context.Background(), 42, "en"); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if len(ad.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(ad.sends))
	}

	cb := &kit.Callback{ID: "cb1", ChatID: 42, Data: tgui.Data(Namespace, "page", "2")}
	if err := v.HandleCallback(context.Background(), cb, "en"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(ad.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(ad.edits))
	}
	if !strings.Contains(ad.edits[0], "Page 2/3") {
		t.Fatalf("page 2 body = %q", ad.edits[0])
	}
	if len(ad.answers) != 1 || ad.answers[0] != "cb1" {
		t.Fatalf("answers = %v", ad.answers)
	}

	// Out-of-range page clamps to the last page.
	cb2 := &kit.Callback{ID: "cb2", ChatID: 42, Data: tgui.Data(Namespace, "page", "99")}
	if err := v.HandleCallback(context.Background(), cb2, "en"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !strings.Contains(ad.edits[1], "Page 3/3") {
		t.Fatalf("clamped body = %q", ad.edits[1])
	}
}

func TestFingerprintCoversKeyboard(t *testing.T) {
	plain := tgui.New().Line("same text").Build()
	kb := tgui.NewInline().Row(tgui.Btn("more", "ns:a"))
	withKb := tgui.New().Line("same text").Inline(kb).Build()

	if Fingerprint(plain) == Fingerprint(withKb) {
		t.Fatal("fingerprint must distinguish keyboard-only differences")
	}

	other := tgui.NewInline().Row(tgui.Btn("back", "ns:b"))
	withOther := tgui.New().Line("same text").Inline(other).Build()
	if Fingerprint(withKb) == Fingerprint(withOther) {
		t.Fatal("fingerprint must distinguish different keyboards")
	}
	if Fingerprint(withKb) != Fingerprint(tgui.New().Line("same text").Inline(kb).Build()) {
		t.Fatal("fingerprint must be deterministic for identical renders")
	}
}

func TestRatesViewTogglesWhenOnlyKeyboardChanges(t *testing.T) {
	// With few currencies the top and paged views render identical text and
	// differ only in their buttons; the toggle must still edit.
	ad := &fakeAdapter{}
	repo := newFakeDashRepo()
	v := NewRatesView(seedRates(3), NewSafeEditor(ad, repo, logx.Nop()), ad, logx.Nop())

	if err := v.Show(context.Background(), 42, "en"); err != nil {
		t.Fatalf("Show: %v", err)
	}
	cb := &kit.Callback{ID: "cb", ChatID: 42, Data: tgui.Data(Namespace, "page", "1")}
	if err := v.HandleCallback(context.Background(), cb, "en"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(ad.edits) != 1 {
		t.Fatalf("edits = %d, want the keyboard toggle to edit", len(ad.edits))
	}
}

func TestRatesViewIgnoresForeignNamespace(t *testing.T) {
	ad := &fakeAdapter{}
	v := NewRatesView(seedRates(3), NewSafeEditor(ad, newFakeDashRepo(), logx.Nop()), ad, logx.Nop())

	cb := &kit.Callback{ID: "cb", ChatID: 1, Data: "menu:open"}
	if err := v.HandleCallback(context.Background(), cb, "en"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(ad.sends)+len(ad.edits)+len(ad.answers) != 0 {
		t.Fatal("foreign callback must be ignored entirely")
	}
}
