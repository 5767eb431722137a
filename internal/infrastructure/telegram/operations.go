package telegram

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	apperrors "github.com/saikatwtf/Lemon/internal/errors"
)

const msgNoPrivileges = "not enough rights"

// Operations wraps the raw bot API with the moderation primitives the
// handlers need. All methods honor context cancellation.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot}
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
			return errors.WithMessage(err, "cant delete message")
		}
		return nil
	}
}

func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) (api.Message, error) {
	select {
	case <-ctx.Done():
		return api.Message{}, ctx.Err()
	default:
		msg := api.NewMessage(chatID, text)
		msg.ParseMode = api.ModeHTML
		msg.LinkPreviewOptions.IsDisabled = true
		sent, err := o.bot.Send(msg)
		if err != nil {
			return api.Message{}, errors.WithMessage(err, "cant send message")
		}
		return sent, nil
	}
}

func (o *Operations) ReplyToMessage(ctx context.Context, chatID int64, messageID int, text string) (api.Message, error) {
	select {
	case <-ctx.Done():
		return api.Message{}, ctx.Err()
	default:
		msg := api.NewMessage(chatID, text)
		msg.ParseMode = api.ModeHTML
		msg.LinkPreviewOptions.IsDisabled = true
		msg.ReplyParameters = api.ReplyParameters{MessageID: messageID}
		sent, err := o.bot.Send(msg)
		if err != nil {
			return api.Message{}, errors.WithMessage(err, "cant send reply")
		}
		return sent, nil
	}
}

// BanUser bans permanently when untilUnix is zero, otherwise until the
// given unix timestamp.
func (o *Operations) BanUser(ctx context.Context, chatID, userID int64, untilUnix int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := o.bot.Request(api.BanChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			UntilDate:      untilUnix,
			RevokeMessages: true,
		}); err != nil {
			return withPrivilegeError(err, "ban")
		}
		return nil
	}
}

func (o *Operations) UnbanUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := o.bot.Request(api.UnbanChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
			OnlyIfBanned: true,
		}); err != nil {
			return withPrivilegeError(err, "unban")
		}
		return nil
	}
}

// KickUser removes the user from the chat without leaving a ban record,
// so they can rejoin via an invite link.
func (o *Operations) KickUser(ctx context.Context, chatID, userID int64) error {
	if err := o.BanUser(ctx, chatID, userID, time.Now().Add(time.Minute).Unix()); err != nil {
		return err
	}
	return o.UnbanUser(ctx, chatID, userID)
}

func (o *Operations) MuteUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := o.bot.Request(api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			UntilDate:   until.Unix(),
			Permissions: &api.ChatPermissions{},

			UseIndependentChatPermissions: true,
		}); err != nil {
			return withPrivilegeError(err, "restrict")
		}
		return nil
	}
}

func (o *Operations) UnmuteUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := o.bot.Request(api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			Permissions: &api.ChatPermissions{
				CanSendMessages:       true,
				CanSendAudios:         true,
				CanSendDocuments:      true,
				CanSendPhotos:         true,
				CanSendVideos:         true,
				CanSendVideoNotes:     true,
				CanSendVoiceNotes:     true,
				CanSendPolls:          true,
				CanSendOtherMessages:  true,
				CanAddWebPagePreviews: true,
				CanChangeInfo:         true,
				CanInviteUsers:        true,
				CanPinMessages:        true,
				CanManageTopics:       true,
			},
		}); err != nil {
			return withPrivilegeError(err, "unrestrict")
		}
		return nil
	}
}

func (o *Operations) GetChatMember(ctx context.Context, chatID, userID int64) (api.ChatMember, error) {
	select {
	case <-ctx.Done():
		return api.ChatMember{}, ctx.Err()
	default:
		member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
			ChatConfigWithUser: api.ChatConfigWithUser{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
		})
		if err != nil {
			return api.ChatMember{}, errors.WithMessage(err, "cant get chat member")
		}
		return member, nil
	}
}

func (o *Operations) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := o.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return member.IsCreator() || member.IsAdministrator(), nil
}

func withPrivilegeError(err error, operation string) error {
	if strings.Contains(err.Error(), msgNoPrivileges) {
		return apperrors.ErrNoPrivileges
	}
	return errors.WithMessagef(err, "failed to %s user", operation)
}
