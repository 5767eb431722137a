package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/i18n"
)

func (r *Replies) cmdSave(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	name, content := splitNameAndContent(msg)
	if name == "" || content == "" {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID,
			i18n.Get("Usage: /save name note text, or reply to a message with /save name.", lang))
		return false, nil
	}
	if err := r.GetService().GetDB().SaveNote(ctx, &db.Note{
		ChatID:  chat.ID,
		Name:    name,
		Content: content,
	}); err != nil {
		return false, errors.WithMessage(err, "cant save note")
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Saved note %q, fetch it with #%s.", lang), name, name))
	return false, nil
}

func (r *Replies) cmdGet(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	name := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if name == "" {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Which note do you want?", lang))
		return false, nil
	}
	note, err := r.GetService().GetDB().GetNote(ctx, chat.ID, name)
	if err != nil {
		return false, errors.WithMessage(err, "cant get note")
	}
	if note == nil {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("There is no note named %q.", lang), name))
		return false, nil
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, note.Content)
	return false, nil
}

func (r *Replies) cmdClear(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	name := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if name == "" {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Which note should I clear?", lang))
		return false, nil
	}
	removed, err := r.GetService().GetDB().DeleteNote(ctx, chat.ID, name)
	if err != nil {
		return false, errors.WithMessage(err, "cant delete note")
	}
	if !removed {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("There is no note named %q.", lang), name))
		return false, nil
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Note %q cleared.", lang), name))
	return false, nil
}

func (r *Replies) cmdNotes(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	notes, err := r.GetService().GetDB().GetNotes(ctx, chat.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant list notes")
	}
	if len(notes) == 0 {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("No notes in this chat.", lang))
		return false, nil
	}
	names := make([]string, 0, len(notes))
	for _, n := range notes {
		names = append(names, "#"+n.Name)
	}
	sort.Strings(names)
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID,
		i18n.Get("Saved notes:", lang)+"\n - "+strings.Join(names, "\n - "))
	return false, nil
}
