package federation

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/config"
	"github.com/saikatwtf/Lemon/internal/db"
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
	"github.com/saikatwtf/Lemon/internal/handlers/base"
	"github.com/saikatwtf/Lemon/internal/i18n"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
)

// Federation links chats so a ban issued once applies everywhere. Feds are
// created in private chat with the bot; a chat belongs to at most one fed.
type Federation struct {
	*base.BaseHandler
	ops        *telegram.Operations
	propagator *Propagator
}

func NewFederation(s bot.Service) *Federation {
	ops := telegram.NewOperations(s.GetBot())
	return &Federation{
		BaseHandler: base.NewBaseHandler(s, "federation"),
		ops:         ops,
		propagator: NewPropagator(
			s.GetDB(),
			config.Get().Federations.FanoutParallelism,
			func(ctx context.Context, chatID, userID int64) error {
				return ops.BanUser(ctx, chatID, userID, 0)
			},
			func(ctx context.Context, chatID, userID int64) error {
				return ops.UnbanUser(ctx, chatID, userID)
			},
		),
	}
}

func (f *Federation) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := f.ValidateUpdate(u, chat, user); err != nil {
		return true, nil
	}
	if u.Message == nil || user.IsBot {
		return true, nil
	}
	msg := u.Message

	if len(msg.NewChatMembers) > 0 && (chat.IsGroup() || chat.IsSuperGroup()) {
		return f.enforceOnJoin(ctx, msg, chat)
	}
	if !msg.IsCommand() {
		return true, nil
	}

	lang := f.GetLanguage(ctx, chat, user)
	switch msg.Command() {
	case "newfed":
		return f.cmdNewFed(ctx, msg, chat, user, lang)
	case "joinfed":
		return f.cmdJoinFed(ctx, msg, chat, user, lang)
	case "leavefed":
		return f.cmdLeaveFed(ctx, msg, chat, user, lang)
	case "fedinfo":
		return f.cmdFedInfo(ctx, msg, chat, lang)
	case "fpromote":
		return f.cmdFedPromote(ctx, msg, chat, user, lang)
	case "fban":
		return f.cmdFedBan(ctx, msg, chat, user, lang)
	case "unfban":
		return f.cmdFedUnban(ctx, msg, chat, user, lang)
	}
	return true, nil
}

// enforceOnJoin catches federation-banned members that slipped in, e.g.
// because their chat was unreachable during the original fan-out.
func (f *Federation) enforceOnJoin(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	fed, err := f.GetService().GetDB().GetFederationByChat(ctx, chat.ID)
	if err != nil || fed == nil {
		return true, err
	}
	entry := f.GetLogger().WithField("method", "enforceOnJoin")
	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		ban, err := f.GetService().GetDB().GetFedBan(ctx, fed.FedID, member.ID)
		if err != nil {
			entry.WithError(err).Warn("cant check fed ban")
			continue
		}
		if ban == nil {
			continue
		}
		if err := f.ops.BanUser(ctx, chat.ID, member.ID, 0); err != nil {
			entry.WithError(err).WithField("user_id", member.ID).Error("cant enforce fed ban")
			continue
		}
		lang := f.GetLanguage(ctx, chat, nil)
		_, _ = f.ops.SendMessage(ctx, chat.ID, fmt.Sprintf(
			i18n.Get("%s is banned in this federation and was removed.", lang), bot.GetUN(member)))
	}
	return true, nil
}

func (f *Federation) cmdNewFed(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !chat.IsPrivate() {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Create federations in private chat with me.", lang))
		return false, nil
	}
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Give the federation a name: /newfed name", lang))
		return false, nil
	}
	fed := &db.Federation{
		FedID:   uuid.New(),
		OwnerID: user.ID,
		Name:    name,
	}
	if err := f.GetService().GetDB().CreateFederation(ctx, fed); err != nil {
		return false, errors.WithMessage(err, "cant create federation")
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Federation %q created.\nID: <code>%s</code>\nUse /joinfed with this ID in your chats.", lang),
		name, fed.FedID))
	return false, nil
}

func (f *Federation) cmdJoinFed(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	if !f.requireChatCreator(ctx, msg, chat, user, lang) {
		return false, nil
	}
	fedID := strings.TrimSpace(msg.CommandArguments())
	fed, err := f.GetService().GetDB().GetFederation(ctx, fedID)
	if err != nil {
		return false, errors.WithMessage(err, "cant get federation")
	}
	if fed == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("No federation with that ID.", lang))
		return false, nil
	}
	current, err := f.GetService().GetDB().GetFederationByChat(ctx, chat.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant check current federation")
	}
	if current != nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("This chat is already in %q. Leave it first with /leavefed.", lang), current.Name))
		return false, apperrors.ErrAlreadyFederated
	}
	// AddFedChat re-checks the membership under the unique constraint, so a
	// concurrent join that slipped past the check above still fails here.
	if err := f.GetService().GetDB().AddFedChat(ctx, fed.FedID, chat.ID); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyFederated) {
			_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This chat is already in a federation. Leave it first with /leavefed.", lang))
			return false, apperrors.ErrAlreadyFederated
		}
		return false, errors.WithMessage(err, "cant join federation")
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("This chat joined federation %q.", lang), fed.Name))
	return false, nil
}

func (f *Federation) cmdLeaveFed(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	if !f.requireChatCreator(ctx, msg, chat, user, lang) {
		return false, nil
	}
	fed, err := f.GetService().GetDB().GetFederationByChat(ctx, chat.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant get federation")
	}
	if fed == nil {
		// Leaving nothing is fine.
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This chat is not in any federation.", lang))
		return false, nil
	}
	if err := f.GetService().GetDB().RemoveFedChat(ctx, fed.FedID, chat.ID); err != nil {
		return false, errors.WithMessage(err, "cant leave federation")
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("This chat left federation %q.", lang), fed.Name))
	return false, nil
}

func (f *Federation) cmdFedInfo(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	var fed *db.Federation
	var err error

	arg := strings.TrimSpace(msg.CommandArguments())
	if arg != "" {
		fed, err = f.GetService().GetDB().GetFederation(ctx, arg)
	} else {
		fed, err = f.GetService().GetDB().GetFederationByChat(ctx, chat.ID)
	}
	if err != nil {
		return false, errors.WithMessage(err, "cant get federation")
	}
	if fed == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("No federation found.", lang))
		return false, nil
	}

	chats, err := f.GetService().GetDB().GetFedChats(ctx, fed.FedID)
	if err != nil {
		return false, errors.WithMessage(err, "cant list fed chats")
	}
	bans, err := f.GetService().GetDB().CountFedBans(ctx, fed.FedID)
	if err != nil {
		return false, errors.WithMessage(err, "cant count fed bans")
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Federation %q\nID: <code>%s</code>\nChats: %d\nBanned users: %d", lang),
		fed.Name, fed.FedID, len(chats), bans))
	return false, nil
}

func (f *Federation) cmdFedPromote(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	fed, _, err := f.fedForCommand(ctx, msg, chat, user)
	if err != nil {
		return false, err
	}
	if fed == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This chat is not in any federation.", lang))
		return false, nil
	}
	if fed.OwnerID != user.ID {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Only the federation owner can promote admins.", lang))
		return false, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to promote its author.", lang))
		return false, nil
	}
	target := msg.ReplyToMessage.From
	if err := f.GetService().GetDB().AddFedAdmin(ctx, fed.FedID, target.ID); err != nil {
		return false, errors.WithMessage(err, "cant add fed admin")
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("%s is now an admin of federation %q.", lang), bot.GetUN(target), fed.Name))
	return false, nil
}

func (f *Federation) cmdFedBan(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	fed, ok, err := f.fedForCommand(ctx, msg, chat, user)
	if err != nil {
		return false, err
	}
	if fed == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This chat is not in any federation.", lang))
		return false, nil
	}
	if !ok {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Only federation admins can do that.", lang))
		return false, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to ban its author federation-wide.", lang))
		return false, nil
	}
	target := msg.ReplyToMessage.From
	if target.IsBot || target.ID == fed.OwnerID {
		return false, nil
	}

	reason := strings.TrimSpace(msg.CommandArguments())
	report, err := f.propagator.PropagateBan(ctx, &db.FedBan{
		FedID:     fed.FedID,
		UserID:    target.ID,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyBanned) {
			_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
				i18n.Get("%s is already banned in this federation.", lang), bot.GetUN(target)))
			return false, nil
		}
		return false, err
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("%s banned across the federation: %d/%d chats done, %d failed.", lang),
		bot.GetUN(target), report.Succeeded, report.Attempted, len(report.Failed)))
	return false, nil
}

func (f *Federation) cmdFedUnban(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	fed, ok, err := f.fedForCommand(ctx, msg, chat, user)
	if err != nil {
		return false, err
	}
	if fed == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This chat is not in any federation.", lang))
		return false, nil
	}
	if !ok {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Only federation admins can do that.", lang))
		return false, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to lift its author's federation ban.", lang))
		return false, nil
	}
	target := msg.ReplyToMessage.From

	report, err := f.propagator.PropagateUnban(ctx, fed.FedID, target.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotBanned) {
			_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
				i18n.Get("%s is not banned in this federation.", lang), bot.GetUN(target)))
			return false, nil
		}
		return false, err
	}
	_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("%s unbanned across the federation: %d/%d chats done, %d failed.", lang),
		bot.GetUN(target), report.Succeeded, report.Attempted, len(report.Failed)))
	return false, nil
}

// fedForCommand resolves the chat's federation and whether the calling user
// may administrate it.
func (f *Federation) fedForCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (*db.Federation, bool, error) {
	fed, err := f.GetService().GetDB().GetFederationByChat(ctx, chat.ID)
	if err != nil {
		return nil, false, errors.WithMessage(err, "cant get federation")
	}
	if fed == nil {
		return nil, false, nil
	}
	if fed.OwnerID == user.ID {
		return fed, true, nil
	}
	admins, err := f.GetService().GetDB().GetFedAdmins(ctx, fed.FedID)
	if err != nil {
		return fed, false, errors.WithMessage(err, "cant get fed admins")
	}
	for _, id := range admins {
		if id == user.ID {
			return fed, true, nil
		}
	}
	return fed, false, nil
}

// requireChatCreator limits federation membership changes to the chat owner.
func (f *Federation) requireChatCreator(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) bool {
	member, err := f.ops.GetChatMember(ctx, chat.ID, user.ID)
	if err != nil {
		f.GetLogger().WithField("method", "requireChatCreator").WithError(err).Warn("cant get chat member")
		return false
	}
	if !member.IsCreator() {
		_, _ = f.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Only the chat owner can change federation membership.", lang))
		return false
	}
	return true
}
