package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/config"
	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/event"
	"github.com/saikatwtf/Lemon/internal/expiry"
	"github.com/saikatwtf/Lemon/internal/handlers/base"
	"github.com/saikatwtf/Lemon/internal/i18n"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
	"github.com/saikatwtf/Lemon/internal/observability"
)

// Gatekeeper challenges newcomers with a captcha code and keeps them muted
// until they type it back.
type Gatekeeper struct {
	*base.BaseHandler
	ops        *telegram.Operations
	challenges *ChallengeService
}

func NewGatekeeper(s bot.Service) *Gatekeeper {
	g := &Gatekeeper{
		BaseHandler: base.NewBaseHandler(s, "gatekeeper"),
		ops:         telegram.NewOperations(s.GetBot()),
	}
	g.challenges = NewChallengeService(g.onVerified, g.onExpired)
	return g
}

// Challenges exposes the lifecycle component backing pending captchas.
func (g *Gatekeeper) Challenges() *ChallengeService {
	return g.challenges
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := g.ValidateUpdate(u, chat, user); err != nil {
		return true, nil
	}
	if u.Message == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	msg := u.Message

	if len(msg.NewChatMembers) > 0 {
		return g.handleNewMembers(ctx, msg, chat)
	}
	if msg.LeftChatMember != nil {
		g.challenges.Revoke(expiry.Key{ChatID: chat.ID, UserID: msg.LeftChatMember.ID})
		return true, nil
	}
	if msg.IsCommand() {
		if msg.Command() == "setcaptcha" {
			return g.cmdSetCaptcha(ctx, msg, chat, user)
		}
		return true, nil
	}
	return g.handlePossibleAnswer(ctx, msg, chat, user)
}

func (g *Gatekeeper) handleNewMembers(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	entry := g.GetLogger().WithField("method", "handleNewMembers")

	settings, err := g.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return true, errors.WithMessage(err, "cant get settings")
	}
	if !settings.CaptchaEnabled {
		return true, nil
	}
	lang := g.GetLanguage(ctx, chat, nil)

	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		if member.IsBot {
			continue
		}
		approved, err := g.GetService().GetDB().IsApproved(ctx, chat.ID, member.ID)
		if err != nil {
			entry.WithError(err).Warn("cant check approval")
		}
		if approved {
			continue
		}
		if err := g.challengeMember(ctx, settings, chat, member, lang); err != nil {
			entry.WithError(err).WithField("user_id", member.ID).Error("cant challenge member")
		}
	}
	return true, nil
}

func (g *Gatekeeper) challengeMember(ctx context.Context, settings *db.Settings, chat *api.Chat, member *api.User, lang string) error {
	k := expiry.Key{ChatID: chat.ID, UserID: member.ID}
	if _, pending := g.challenges.Pending(k); pending {
		return nil
	}

	timeout := settings.GetCaptchaTimeout()
	if err := g.ops.MuteUser(ctx, chat.ID, member.ID, time.Now().Add(timeout+time.Minute)); err != nil {
		return errors.WithMessage(err, "cant mute newcomer")
	}

	code := generateCaptchaCode(config.Get().Captcha.CodeLength)
	prompt, err := g.ops.SendMessage(ctx, chat.ID, fmt.Sprintf(
		i18n.Get("Welcome, %s! Please type this code to prove you're human: <code>%s</code>\nYou have %s.", lang),
		bot.GetUN(member), code, timeout.Round(time.Second),
	))
	if err != nil {
		return errors.WithMessage(err, "cant send captcha prompt")
	}

	if err := g.challenges.Issue(k, code, bot.GetUN(member), prompt.MessageID, timeout); err != nil {
		return errors.WithMessage(err, "cant issue challenge")
	}
	return nil
}

func (g *Gatekeeper) handlePossibleAnswer(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	k := expiry.Key{ChatID: chat.ID, UserID: user.ID}
	if _, pending := g.challenges.Pending(k); !pending {
		return true, nil
	}

	// Whatever a gated member sends is treated as an answer and removed
	// from the chat.
	defer func() {
		_ = g.ops.DeleteMessage(ctx, chat.ID, msg.MessageID)
	}()

	g.challenges.BeginAnswer(k)
	solved, stillPending := g.challenges.SubmitAnswer(k, msg.Text)
	if solved || !stillPending {
		return false, nil
	}

	lang := g.GetLanguage(ctx, chat, user)
	notice, err := g.ops.SendMessage(ctx, chat.ID, i18n.Get("That's not the code, try again.", lang))
	if err == nil {
		noticeID := notice.MessageID
		time.AfterFunc(10*time.Second, func() {
			_ = g.ops.DeleteMessage(context.Background(), chat.ID, noticeID)
		})
	}
	return false, nil
}

// onVerified runs on whichever goroutine committed the challenge.
func (g *Gatekeeper) onVerified(k expiry.Key, ch Challenge) {
	ctx := context.Background()
	entry := g.GetLogger().WithField("method", "onVerified")

	if err := g.ops.UnmuteUser(ctx, k.ChatID, k.UserID); err != nil {
		entry.WithError(err).Error("cant unmute verified member")
	}
	if ch.PromptID != 0 {
		_ = g.ops.DeleteMessage(ctx, k.ChatID, ch.PromptID)
	}
	lang := g.GetLanguage(ctx, &api.Chat{ID: k.ChatID}, nil)
	_, _ = g.ops.SendMessage(ctx, k.ChatID, fmt.Sprintf(
		i18n.Get("%s passed the check, welcome aboard!", lang), ch.Username))

	observability.RecordChallengeOutcome(string(ChallengeVerified))
	event.Bus.Enqueue(&event.ChallengeOutcome{
		Base:    event.CreateBase(event.TypeChallengeOutcome, time.Now().Add(time.Hour)),
		ChatID:  k.ChatID,
		UserID:  k.UserID,
		Outcome: string(ChallengeVerified),
		Retries: ch.Retries,
	})
}

func (g *Gatekeeper) onExpired(k expiry.Key, ch Challenge) {
	ctx := context.Background()
	entry := g.GetLogger().WithField("method", "onExpired")

	if err := g.ops.KickUser(ctx, k.ChatID, k.UserID); err != nil {
		entry.WithError(err).Error("cant kick unverified member")
	}
	if ch.PromptID != 0 {
		_ = g.ops.DeleteMessage(ctx, k.ChatID, ch.PromptID)
	}

	observability.RecordChallengeOutcome(string(ChallengeExpired))
	event.Bus.Enqueue(&event.ChallengeOutcome{
		Base:    event.CreateBase(event.TypeChallengeOutcome, time.Now().Add(time.Hour)),
		ChatID:  k.ChatID,
		UserID:  k.UserID,
		Outcome: string(ChallengeExpired),
		Retries: ch.Retries,
	})
}

func (g *Gatekeeper) cmdSetCaptcha(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	lang := g.GetLanguage(ctx, chat, user)
	isAdmin, err := g.ops.IsChatAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant check admin status")
	}
	if !isAdmin {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This one is for admins only.", lang))
		return false, nil
	}

	settings, err := g.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return false, errors.WithMessage(err, "cant get settings")
	}

	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	switch {
	case arg == "on" || arg == "yes":
		settings.CaptchaEnabled = true
	case arg == "off" || arg == "no":
		settings.CaptchaEnabled = false
	default:
		seconds, convErr := strconv.Atoi(arg)
		if convErr != nil || seconds <= 0 {
			_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID,
				i18n.Get("Usage: /setcaptcha on|off, or a timeout in seconds.", lang))
			return false, nil
		}
		timeout := time.Duration(seconds) * time.Second
		if timeout < db.MinCaptchaTimeout {
			timeout = db.MinCaptchaTimeout
		}
		settings.CaptchaEnabled = true
		settings.CaptchaTimeout = timeout.Nanoseconds()
	}

	if err := g.GetService().SetSettings(ctx, settings); err != nil {
		return false, errors.WithMessage(err, "cant save settings")
	}
	if settings.CaptchaEnabled {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("Captcha is on, newcomers get %s to answer.", lang),
			settings.GetCaptchaTimeout().Round(time.Second)))
	} else {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Captcha is off.", lang))
	}
	return false, nil
}
