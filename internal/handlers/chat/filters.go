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

func (r *Replies) cmdFilter(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	keyword, content := splitNameAndContent(msg)
	if keyword == "" || content == "" {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID,
			i18n.Get("Usage: /filter keyword reply text, or reply to a message with /filter keyword.", lang))
		return false, nil
	}
	if err := r.GetService().GetDB().AddFilter(ctx, &db.Filter{
		ChatID:  chat.ID,
		Keyword: keyword,
		Content: content,
	}); err != nil {
		return false, errors.WithMessage(err, "cant add filter")
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("I'll reply whenever someone says %q.", lang), keyword))
	return false, nil
}

func (r *Replies) cmdStop(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	keyword := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if keyword == "" {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Which filter should I stop?", lang))
		return false, nil
	}
	removed, err := r.GetService().GetDB().RemoveFilter(ctx, chat.ID, keyword)
	if err != nil {
		return false, errors.WithMessage(err, "cant remove filter")
	}
	if !removed {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("There is no filter for %q.", lang), keyword))
		return false, nil
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Filter %q stopped.", lang), keyword))
	return false, nil
}

func (r *Replies) cmdFilters(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	filters, err := r.GetService().GetDB().GetFilters(ctx, chat.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant list filters")
	}
	if len(filters) == 0 {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("No filters in this chat.", lang))
		return false, nil
	}
	keywords := make([]string, 0, len(filters))
	for _, f := range filters {
		keywords = append(keywords, f.Keyword)
	}
	sort.Strings(keywords)
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID,
		i18n.Get("Active filters:", lang)+"\n - "+strings.Join(keywords, "\n - "))
	return false, nil
}
