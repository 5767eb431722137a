package moderation

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
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
	"github.com/saikatwtf/Lemon/internal/event"
	"github.com/saikatwtf/Lemon/internal/expiry"
	"github.com/saikatwtf/Lemon/internal/handlers/base"
	"github.com/saikatwtf/Lemon/internal/i18n"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
	"github.com/saikatwtf/Lemon/internal/observability"
)

// Moderation enforces per-chat flood limits and the warning escalation
// policy, and owns the related chat commands.
type Moderation struct {
	*base.BaseHandler
	ops      *telegram.Operations
	detector *Detector
}

func NewModeration(s bot.Service) *Moderation {
	return &Moderation{
		BaseHandler: base.NewBaseHandler(s, "moderation"),
		ops:         telegram.NewOperations(s.GetBot()),
		detector:    NewDetector(),
	}
}

// FloodStore exposes the counter store so the runtime can manage its sweeper.
func (m *Moderation) FloodStore() *expiry.Store[floodCounter] {
	return m.detector.Store()
}

func (m *Moderation) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := m.ValidateUpdate(u, chat, user); err != nil {
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
		return m.handleCommand(ctx, msg, chat, user)
	}
	return m.checkFlood(ctx, msg, chat, user)
}

func (m *Moderation) checkFlood(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	entry := m.GetLogger().WithField("method", "checkFlood")

	settings, err := m.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return true, errors.WithMessage(err, "cant get settings")
	}
	if settings.FloodLimit <= 0 {
		return true, nil
	}

	isAdmin, err := m.ops.IsChatAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		entry.WithError(err).Warn("cant check admin status")
	}
	if isAdmin {
		return true, nil
	}
	approved, err := m.GetService().GetDB().IsApproved(ctx, chat.ID, user.ID)
	if err != nil {
		entry.WithError(err).Warn("cant check approval")
	}
	if approved {
		return true, nil
	}

	k := expiry.Key{ChatID: chat.ID, UserID: user.ID}
	count, triggered := m.detector.RecordMessage(k, settings.FloodLimit, config.Get().Flood.Window)
	if !triggered {
		return true, nil
	}

	lang := m.GetLanguage(ctx, chat, user)
	if err := m.applyFloodAction(ctx, settings, chat.ID, user.ID); err != nil {
		if errors.Is(err, apperrors.ErrNoPrivileges) {
			_, _ = m.ops.SendMessage(ctx, chat.ID, i18n.Get("I don't have enough rights to restrict members here.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "cant apply flood action")
	}

	observability.RecordFloodAction(settings.FloodMode)
	event.Bus.Enqueue(&event.FloodAction{
		Base:   event.CreateBase(event.TypeFloodAction, time.Now().Add(time.Hour)),
		ChatID: chat.ID,
		UserID: user.ID,
		Mode:   settings.FloodMode,
		Count:  count,
	})

	_, _ = m.ops.SendMessage(ctx, chat.ID, fmt.Sprintf(
		i18n.Get("%s flooded the chat and got the %s treatment.", lang),
		bot.GetUN(user), settings.FloodMode,
	))
	return false, nil
}

func (m *Moderation) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	lang := m.GetLanguage(ctx, chat, user)

	switch msg.Command() {
	case "setflood":
		return m.cmdSetFlood(ctx, msg, chat, user, lang)
	case "setfloodmode":
		return m.cmdSetFloodMode(ctx, msg, chat, user, lang)
	case "flood":
		return m.cmdFlood(ctx, msg, chat, lang)
	case "warn":
		return m.cmdWarn(ctx, msg, chat, user, lang)
	case "warns":
		return m.cmdWarns(ctx, msg, chat, user, lang)
	case "resetwarns":
		return m.cmdResetWarns(ctx, msg, chat, user, lang)
	case "report":
		return m.cmdReport(ctx, msg, chat, user, lang)
	}
	return true, nil
}

func (m *Moderation) cmdSetFlood(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if ok := m.requireAdmin(ctx, msg, chat, user, lang); !ok {
		return false, nil
	}
	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	settings, err := m.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return false, errors.WithMessage(err, "cant get settings")
	}

	switch arg {
	case "off", "no", "0":
		settings.FloodLimit = 0
	default:
		limit, err := strconv.Atoi(arg)
		if err != nil || limit < 0 {
			_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Give me a number, or \"off\" to disable flood control.", lang))
			return false, nil
		}
		settings.FloodLimit = limit
	}

	if err := m.GetService().SetSettings(ctx, settings); err != nil {
		return false, errors.WithMessage(err, "cant save settings")
	}
	if settings.FloodLimit == 0 {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Flood control is off.", lang))
	} else {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("Flood control set to %d messages.", lang), settings.FloodLimit))
	}
	return false, nil
}

func (m *Moderation) cmdSetFloodMode(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if ok := m.requireAdmin(ctx, msg, chat, user, lang); !ok {
		return false, nil
	}
	args := strings.Fields(strings.ToLower(msg.CommandArguments()))
	if len(args) == 0 {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Flood mode must be one of: ban, kick, mute.", lang))
		return false, nil
	}
	mode := args[0]
	switch mode {
	case db.FloodModeBan, db.FloodModeKick, db.FloodModeMute:
	default:
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Flood mode must be one of: ban, kick, mute.", lang))
		return false, nil
	}

	settings, err := m.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return false, errors.WithMessage(err, "cant get settings")
	}
	settings.FloodMode = mode
	if mode == db.FloodModeMute && len(args) > 1 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Mute time must be a number of seconds.", lang))
			return false, nil
		}
		d := time.Duration(secs) * time.Second
		if d < db.MinFloodTime {
			d = db.MinFloodTime
		}
		settings.FloodTime = d.Nanoseconds()
	}
	if err := m.GetService().SetSettings(ctx, settings); err != nil {
		return false, errors.WithMessage(err, "cant save settings")
	}
	_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Flooders now get the %s treatment.", lang), mode))
	return false, nil
}

func (m *Moderation) cmdFlood(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) (bool, error) {
	settings, err := m.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return false, errors.WithMessage(err, "cant get settings")
	}
	if settings.FloodLimit <= 0 {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Flood control is off.", lang))
		return false, nil
	}
	_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Flood control: %d messages, then %s.", lang), settings.FloodLimit, settings.FloodMode))
	return false, nil
}

func (m *Moderation) cmdWarn(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if ok := m.requireAdmin(ctx, msg, chat, user, lang); !ok {
		return false, nil
	}
	target, reason := targetAndReason(msg)
	if target == nil {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to warn its author.", lang))
		return false, nil
	}
	if target.IsBot || target.ID == user.ID {
		return false, nil
	}
	if isAdmin, _ := m.ops.IsChatAdmin(ctx, chat.ID, target.ID); isAdmin {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("I won't warn an admin.", lang))
		return false, nil
	}

	count, escalated, err := m.AddWarning(ctx, chat.ID, target.ID, user.ID, reason)
	if err != nil {
		return false, err
	}
	if escalated {
		_, _ = m.ops.SendMessage(ctx, chat.ID, fmt.Sprintf(
			i18n.Get("%s hit %d warnings and is banned.", lang), bot.GetUN(target), count))
		return false, nil
	}
	_, _ = m.ops.SendMessage(ctx, chat.ID, fmt.Sprintf(
		i18n.Get("%s has been warned (%d/%d).", lang), bot.GetUN(target), count, config.Get().Warnings.Threshold))
	return false, nil
}

func (m *Moderation) cmdWarns(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	target, _ := targetAndReason(msg)
	if target == nil {
		target = user
	}
	warns, err := m.GetService().GetDB().GetWarns(ctx, chat.ID, target.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant get warns")
	}
	if len(warns) == 0 {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
			i18n.Get("%s has no warnings.", lang), bot.GetUN(target)))
		return false, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, i18n.Get("%s has %d/%d warnings:", lang), bot.GetUN(target), len(warns), config.Get().Warnings.Threshold)
	for _, w := range warns {
		reason := w.Reason
		if reason == "" {
			reason = i18n.Get("no reason", lang)
		}
		fmt.Fprintf(&sb, "\n %d. %s", w.Seq, reason)
	}
	_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, sb.String())
	return false, nil
}

func (m *Moderation) cmdResetWarns(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	if ok := m.requireAdmin(ctx, msg, chat, user, lang); !ok {
		return false, nil
	}
	target, _ := targetAndReason(msg)
	if target == nil {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to reset its author's warnings.", lang))
		return false, nil
	}
	if err := m.GetService().GetDB().ResetWarns(ctx, chat.ID, target.ID); err != nil {
		return false, errors.WithMessage(err, "cant reset warns")
	}
	_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, fmt.Sprintf(
		i18n.Get("Warnings for %s have been reset.", lang), bot.GetUN(target)))
	return false, nil
}

func (m *Moderation) cmdReport(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	target, _ := targetAndReason(msg)
	if target == nil {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reply to a message to report it.", lang))
		return false, nil
	}
	event.Bus.Enqueue(&event.Report{
		Base:       event.CreateBase(event.TypeReport, time.Now().Add(time.Hour)),
		ChatID:     chat.ID,
		ReporterID: user.ID,
		TargetID:   target.ID,
	})
	_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("Reported to the admins.", lang))
	return false, nil
}

// requireAdmin replies with a refusal and returns false for non-admins.
func (m *Moderation) requireAdmin(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) bool {
	isAdmin, err := m.ops.IsChatAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		m.GetLogger().WithField("method", "requireAdmin").WithError(err).Warn("cant check admin status")
		return false
	}
	if !isAdmin {
		_, _ = m.ops.ReplyToMessage(ctx, chat.ID, msg.MessageID, i18n.Get("This one is for admins only.", lang))
		return false
	}
	return true
}

// targetAndReason resolves the command's target user from the replied-to
// message and the free-text remainder as the reason.
func targetAndReason(msg *api.Message) (*api.User, string) {
	reason := strings.TrimSpace(msg.CommandArguments())
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From, reason
	}
	return nil, reason
}
