package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/handlers/base"
	"github.com/saikatwtf/Lemon/internal/i18n"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
)

// Greetings welcomes joining members and says goodbye to leaving ones, using
// admin-provided templates with {user}/{id}/{username}/{chat} placeholders.
type Greetings struct {
	*base.BaseHandler
	ops *telegram.Operations
}

func NewGreetings(s bot.Service) *Greetings {
	return &Greetings{
		BaseHandler: base.NewBaseHandler(s, "greetings"),
		ops:         telegram.NewOperations(s.GetBot()),
	}
}

func (g *Greetings) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
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
		return g.welcomeMembers(ctx, msg, chat)
	}
	if msg.LeftChatMember != nil {
		return g.farewellMember(ctx, msg, chat, msg.LeftChatMember)
	}
	if msg.IsCommand() {
		lang := g.GetLanguage(ctx, chat, user)
		switch msg.Command() {
		case "setwelcome":
			return g.cmdSetWelcome(ctx, msg, chat, user, lang)
		case "setfarewell":
			return g.cmdSetFarewell(ctx, msg, chat, user, lang)
		}
	}
	return true, nil
}

func (g *Greetings) welcomeMembers(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	greetings, err := g.GetService().GetDB().GetGreetings(ctx, chat.ID)
	if err != nil {
		g.GetLogger().WithField("method", "welcomeMembers").WithError(err).Warn("cant get greetings")
		return true, nil
	}
	if greetings == nil || !greetings.WelcomeEnabled {
		return true, nil
	}
	settings, err := g.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return true, errors.WithMessage(err, "cant get settings")
	}
	// Gated newcomers are welcomed by the gatekeeper once they verify.
	if settings.CaptchaEnabled {
		return true, nil
	}
	lang := g.GetLanguage(ctx, chat, nil)

	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		if member.IsBot {
			continue
		}
		text := greetings.WelcomeText
		if text == "" {
			text = i18n.Get("Welcome {user} to {chat}!", lang)
		}
		if _, err := g.ops.SendMessage(ctx, chat.ID, renderGreeting(text, member, chat.Title)); err != nil {
			g.GetLogger().WithField("method", "welcomeMembers").WithError(err).Warn("cant send welcome")
		}
	}
	return true, nil
}

func (g *Greetings) farewellMember(ctx context.Context, msg *api.Message, chat *api.Chat, member *api.User) (bool, error) {
	if member.IsBot {
		return true, nil
	}
	greetings, err := g.GetService().GetDB().GetGreetings(ctx, chat.ID)
	if err != nil {
		g.GetLogger().WithField("method", "farewellMember").WithError(err).Warn("cant get greetings")
		return true, nil
	}
	if greetings == nil || !greetings.FarewellEnabled {
		return true, nil
	}
	lang := g.GetLanguage(ctx, chat, nil)
	text := greetings.FarewellText
	if text == "" {
		text = i18n.Get("Goodbye {user}, we'll miss you!", lang)
	}
	if _, err := g.ops.SendMessage(ctx, chat.ID, renderGreeting(text, member, chat.Title)); err != nil {
		g.GetLogger().WithField("method", "farewellMember").WithError(err).Warn("cant send farewell")
	}
	return true, nil
}

func (g *Greetings) cmdSetWelcome(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !g.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	greetings, err := g.getOrCreateGreetings(ctx, chat)
	if err != nil {
		return false, err
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	switch strings.ToLower(arg) {
	case "":
		if content := repliedText(msg); content != "" {
			greetings.WelcomeText = content
			break
		}
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("Welcome messages are %s.\nUse /setwelcome on|off, or give the message text.\nPlaceholders: {user}, {id}, {username}, {chat}.", lang),
			onOff(greetings.WelcomeEnabled, lang)))
		return false, nil
	case "on", "yes":
		greetings.WelcomeEnabled = true
	case "off", "no":
		greetings.WelcomeEnabled = false
	default:
		greetings.WelcomeText = arg
	}

	if err := g.GetService().GetDB().SetGreetings(ctx, greetings); err != nil {
		return false, errors.WithMessage(err, "cant save greetings")
	}
	if greetings.WelcomeEnabled {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Welcome messages are on.", lang))
	} else {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Welcome messages are off.", lang))
	}
	return false, nil
}

func (g *Greetings) cmdSetFarewell(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if !g.requireAdmin(ctx, msg, chat, user, lang) {
		return false, nil
	}
	greetings, err := g.getOrCreateGreetings(ctx, chat)
	if err != nil {
		return false, err
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	switch strings.ToLower(arg) {
	case "":
		if content := repliedText(msg); content != "" {
			greetings.FarewellText = content
			break
		}
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("Farewell messages are %s.\nUse /setfarewell on|off, or give the message text.\nPlaceholders: {user}, {id}, {username}, {chat}.", lang),
			onOff(greetings.FarewellEnabled, lang)))
		return false, nil
	case "on", "yes":
		greetings.FarewellEnabled = true
	case "off", "no":
		greetings.FarewellEnabled = false
	default:
		greetings.FarewellText = arg
	}

	if err := g.GetService().GetDB().SetGreetings(ctx, greetings); err != nil {
		return false, errors.WithMessage(err, "cant save greetings")
	}
	if greetings.FarewellEnabled {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Farewell messages are on.", lang))
	} else {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Farewell messages are off.", lang))
	}
	return false, nil
}

func (g *Greetings) getOrCreateGreetings(ctx context.Context, chat *api.Chat) (*db.Greetings, error) {
	greetings, err := g.GetService().GetDB().GetGreetings(ctx, chat.ID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant get greetings")
	}
	if greetings == nil {
		greetings = &db.Greetings{ChatID: chat.ID}
	}
	return greetings, nil
}

func (g *Greetings) requireAdmin(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) bool {
	isAdmin, err := g.ops.IsChatAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		g.GetLogger().WithField("method", "requireAdmin").WithError(err).Warn("cant check admin status")
		return false
	}
	if !isAdmin {
		_, _ = g.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This one is for admins only.", lang))
		return false
	}
	return true
}

// renderGreeting substitutes the member placeholders the original templates
// use into the admin-provided text.
func renderGreeting(text string, member *api.User, chatTitle string) string {
	username := member.UserName
	if username == "" {
		username = member.FirstName
	}
	return strings.NewReplacer(
		"{user}", bot.GetFullName(member),
		"{id}", strconv.FormatInt(member.ID, 10),
		"{username}", username,
		"{chat}", chatTitle,
	).Replace(text)
}

func repliedText(msg *api.Message) string {
	if msg.ReplyToMessage == nil {
		return ""
	}
	if msg.ReplyToMessage.Text != "" {
		return msg.ReplyToMessage.Text
	}
	return msg.ReplyToMessage.Caption
}

func onOff(enabled bool, lang string) string {
	if enabled {
		return i18n.Get("on", lang)
	}
	return i18n.Get("off", lang)
}
