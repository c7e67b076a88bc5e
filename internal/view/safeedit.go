package view

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

// Fingerprint hashes the rendered content that determines what the user
// sees: text, parse mode, and the inline keyboard. Two messages with equal
// fingerprints are visually identical, including their buttons, so a
// keyboard-only change (e.g. a view toggle over identical text) still
// triggers an edit.
func Fingerprint(m tgui.Message) string {
	h := sha256.New()
	h.Write([]byte(m.Text))
	if m.Opt != nil {
		h.Write([]byte{0})
		h.Write([]byte(m.Opt.ParseMode))
		if m.Opt.ReplyMarkupAdapter != nil {
			if b, err := json.Marshal(m.Opt.ReplyMarkupAdapter); err == nil {
				h.Write([]byte{0})
				h.Write(b)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SafeEditor maintains one editable dashboard message per chat.
//
// Edits are idempotent: unchanged content is skipped before any network
// call, a stale "not modified" answer from the platform still persists the
// fingerprint, and a deleted dashboard message is transparently replaced by
// a fresh one.
type SafeEditor struct {
	ad   kit.Adapter
	dash storage.DashboardRepo
	log  logx.Logger
}

func NewSafeEditor(ad kit.Adapter, dash storage.DashboardRepo, log logx.Logger) *SafeEditor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SafeEditor{ad: ad, dash: dash, log: log}
}

// Apply brings the chat's dashboard message in line with m.
// It reports whether anything was actually sent or edited.
func (e *SafeEditor) Apply(ctx context.Context, chatID int64, m tgui.Message) (bool, error) {
	hash := Fingerprint(m)

	dash, found, err := e.dash.GetByChat(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("load dashboard: %w", err)
	}
	if !found {
		ref, err := m.Send(ctx, e.ad, kit.ChatTarget{ChatID: chatID})
		if err != nil {
			return false, err
		}
		if _, err := e.dash.Create(ctx, chatID, ref.MessageID, hash); err != nil {
			return true, fmt.Errorf("bind dashboard: %w", err)
		}
		return true, nil
	}

	if dash.LastHash == hash {
		e.log.Debug("dashboard unchanged, skipping edit", logx.Int64("chat_id", chatID))
		return false, nil
	}

	ref := kit.MessageRef{ChatID: chatID, MessageID: dash.MessageID}
	switch err := m.Edit(ctx, e.ad, ref); {
	case err == nil:
		if err := e.dash.UpdateHash(ctx, dash.ID, hash); err != nil {
			return true, fmt.Errorf("persist dashboard hash: %w", err)
		}
		return true, nil

	case errors.Is(err, kit.ErrContentUnchanged):
		// The platform already shows this content; remember the hash so the
		// next render short-circuits locally.
		if err := e.dash.UpdateHash(ctx, dash.ID, hash); err != nil {
			return false, fmt.Errorf("persist dashboard hash: %w", err)
		}
		return false, nil

	case errors.Is(err, kit.ErrSurfaceNotFound):
		e.log.Info("dashboard message gone, sending replacement", logx.Int64("chat_id", chatID))
		newRef, sendErr := m.Send(ctx, e.ad, kit.ChatTarget{ChatID: chatID})
		if sendErr != nil {
			return false, sendErr
		}
		if err := e.dash.ReplaceMessage(ctx, dash.ID, newRef.MessageID, hash); err != nil {
			return true, fmt.Errorf("rebind dashboard: %w", err)
		}
		return true, nil

	default:
		return false, err
	}
}
