package chat

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/handlers/base"
	"github.com/saikatwtf/Lemon/internal/i18n"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
)

// Replies serves keyword filters and saved notes, and manages the approval
// list that exempts trusted members from moderation checks.
type Replies struct {
	*base.BaseHandler
	ops *telegram.Operations
}

func NewReplies(s bot.Service) *Replies {
	return &Replies{
		BaseHandler: base.NewBaseHandler(s, "replies"),
		ops:         telegram.NewOperations(s.GetBot()),
	}
}

func (r *Replies) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := r.ValidateUpdate(u, chat, user); err != nil {
		return true, nil
	}
	if u.Message == nil || user.IsBot {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	msg := u.Message

	if msg.IsCommand() {
		lang := r.GetLanguage(ctx, chat, user)
		switch msg.Command() {
		case "filter":
			return r.cmdFilter(ctx, msg, chat, user, lang)
		case "stop":
			return r.cmdStop(ctx, msg, chat, user, lang)
		case "filters":
			return r.cmdFilters(ctx, msg, chat, lang)
		case "save":
			return r.cmdSave(ctx, msg, chat, user, lang)
		case "get":
			return r.cmdGet(ctx, msg, chat, lang)
		case "clear":
			return r.cmdClear(ctx, msg, chat, user, lang)
		case "notes":
			return r.cmdNotes(ctx, msg, chat, lang)
		case "approve":
			return r.cmdApprove(ctx, msg, chat, user, lang)
		case "disapprove":
			return r.cmdDisapprove(ctx, msg, chat, user, lang)
		case "approved":
			return r.cmdApproved(ctx, msg, chat, lang)
		}
		return true, nil
	}

	if msg.Text != "" {
		if handled, err := r.matchNoteShortcut(ctx, msg, chat); handled || err != nil {
			return !handled, err
		}
		if approved, err := r.GetService().GetDB().IsApproved(ctx, chat.ID, user.ID); err == nil && approved {
			return true, nil
		}
		if handled, err := r.matchFilters(ctx, msg, chat); handled || err != nil {
			return !handled, err
		}
	}
	return true, nil
}

// matchNoteShortcut serves "#name" lookups.
func (r *Replies) matchNoteShortcut(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "#") || len(text) < 2 {
		return false, nil
	}
	name := strings.ToLower(strings.Fields(text[1:])[0])
	note, err := r.GetService().GetDB().GetNote(ctx, chat.ID, name)
	if err != nil || note == nil {
		return false, err
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, note.Content)
	return true, nil
}

// matchFilters replies with the stored content of the first keyword found as
// a whole word in the message.
func (r *Replies) matchFilters(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	filters, err := r.GetService().GetDB().GetFilters(ctx, chat.ID)
	if err != nil || len(filters) == 0 {
		return false, err
	}
	words := wordSet(msg.Text)
	for _, f := range filters {
		if words[f.Keyword] {
			_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, f.Content)
			return true, nil
		}
	}
	return false, nil
}

func (r *Replies) requireAdmin(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) bool {
	isAdmin, err := r.ops.IsChatAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		r.GetLogger().WithField("method", "requireAdmin").WithError(err).Warn("cant check admin status")
		return false
	}
	if !isAdmin {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This one is for admins only.", lang))
		return false
	}
	return true
}

// wordSet lowercases the text and splits it into words with surrounding
// punctuation stripped, so keywords match as whole words only.
func wordSet(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if w = strings.Trim(w, ".,!?;:\"'()[]"); w != "" {
			words[w] = true
		}
	}
	return words
}

// splitNameAndContent returns the first argument lowercased plus the rest,
// falling back to the replied-to message's text for the content.
func splitNameAndContent(msg *api.Message) (string, string) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return "", ""
	}
	parts := strings.SplitN(args, " ", 2)
	name := strings.ToLower(parts[0])
	content := ""
	if len(parts) == 2 {
		content = strings.TrimSpace(parts[1])
	}
	if content == "" && msg.ReplyToMessage != nil {
		content = msg.ReplyToMessage.Text
		if content == "" {
			content = msg.ReplyToMessage.Caption
		}
	}
	return name, content
}
