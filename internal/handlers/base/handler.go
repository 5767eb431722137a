package base

import (
	"context"
	"errors"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/db"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	service bot.Service
	logger  *log.Entry
}

func NewBaseHandler(service bot.Service, handlerName string) *BaseHandler {
	return &BaseHandler{
		service: service,
		logger:  log.WithField("handler", handlerName),
	}
}

func (h *BaseHandler) GetService() bot.Service {
	return h.service
}

func (h *BaseHandler) GetLogger() *log.Entry {
	return h.logger
}

// ValidateUpdate performs common update validation
func (h *BaseHandler) ValidateUpdate(u *api.Update, chat *api.Chat, user *api.User) error {
	if u == nil {
		return ErrNilUpdate
	}
	if chat == nil || user == nil {
		return ErrNilChatOrUser
	}
	return nil
}

// GetOrCreateSettings retrieves or creates default settings for a chat
func (h *BaseHandler) GetOrCreateSettings(ctx context.Context, chat *api.Chat) (*db.Settings, error) {
	settings, err := h.service.GetSettings(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = db.DefaultSettings(chat.ID)
		if err := h.service.SetSettings(ctx, settings); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func (h *BaseHandler) GetLanguage(ctx context.Context, chat *api.Chat, user *api.User) string {
	return h.service.GetLanguage(ctx, chat.ID, user)
}

var (
	ErrNilUpdate     = errors.New("nil update")
	ErrNilChatOrUser = errors.New("nil chat or user")
)
