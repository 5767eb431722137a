package chat

import (
	"context"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/i18n"
)

func (r *Replies) cmdApprove(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to approve its author.", lang))
		return false, nil
	}
	target := msg.ReplyToMessage.From
	if target.IsBot {
		return false, nil
	}
	if err := r.GetService().GetDB().ApproveUser(ctx, chat.ID, target.ID); err != nil {
		return false, errors.WithMessage(err, "cant approve user")
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("%s is now approved and skips moderation checks.", lang), bot.GetUN(target)))
	return false, nil
}

func (r *Replies) cmdDisapprove(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !r.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to disapprove its author.", lang))
		return false, nil
	}
	target := msg.ReplyToMessage.From
	removed, err := r.GetService().GetDB().DisapproveUser(ctx, chat.ID, target.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant disapprove user")
	}
	if !removed {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("%s wasn't approved in the first place.", lang), bot.GetUN(target)))
		return false, nil
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("%s is no longer approved.", lang), bot.GetUN(target)))
	return false, nil
}

func (r *Replies) cmdApproved(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	userIDs, err := r.GetService().GetDB().ListApproved(ctx, chat.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant list approved users")
	}
	if len(userIDs) == 0 {
		_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Nobody is approved in this chat.", lang))
		return false, nil
	}
	var b strings.Builder
	b.WriteString(i18n.Get("Approved users:", lang))
	for _, id := range userIDs {
		fmt.Fprintf(&b, "\n- <a href=\"tg://user?id=%d\">%d</a>", id, id)
	}
	_, _ = r.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, b.String())
	return false, nil
}
