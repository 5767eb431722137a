package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/saikatwtf/Lemon/internal/config"
	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/i18n"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
}

func NewService(bot *api.BotAPI, db db.Client) *service {
	return &service{
		bot: bot,
		db:  db,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	return s.db.GetSettings(ctx, chatID)
}

func (s *service) SetSettings(ctx context.Context, settings *db.Settings) error {
	return s.db.SetSettings(ctx, settings)
}

// GetLanguage resolves the reply language: chat settings first, then the
// user's client language when we have a translation for it, then the
// configured default.
func (s *service) GetLanguage(ctx context.Context, chatID int64, user *api.User) string {
	settings, err := s.db.GetSettings(ctx, chatID)
	if err != nil {
		log.WithField("method", "GetLanguage").WithError(err).Warn("cant get chat settings")
	}
	if settings != nil && settings.Language != "" {
		return settings.Language
	}
	if user != nil && user.LanguageCode != "" && i18n.IsSupported(user.LanguageCode) {
		return user.LanguageCode
	}
	return config.Get().DefaultLanguage
}
