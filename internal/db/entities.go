package db

import (
	"time"
)

type (
	// Settings is the per-chat moderation policy. It is owned by persistence
	// and read fresh on every check, never cached in memory.
	Settings struct {
		ID             int64  `db:"id"`
		Language       string `db:"language"`
		FloodLimit     int    `db:"flood_limit"`
		FloodMode      string `db:"flood_mode"`
		FloodTime      int64  `db:"flood_time"`
		CaptchaEnabled bool   `db:"captcha_enabled"`
		CaptchaTimeout int64  `db:"captcha_timeout"`
	}

	// Warn is one persisted warning. Warnings survive restarts, unlike flood
	// counters and challenges.
	Warn struct {
		ChatID    int64     `db:"chat_id"`
		UserID    int64     `db:"user_id"`
		Seq       int       `db:"seq"`
		Reason    string    `db:"reason"`
		CreatedAt time.Time `db:"created_at"`
	}

	Federation struct {
		FedID   string `db:"fed_id"`
		OwnerID int64  `db:"owner_id"`
		Name    string `db:"name"`
	}

	FedBan struct {
		FedID     string    `db:"fed_id"`
		UserID    int64     `db:"user_id"`
		Reason    string    `db:"reason"`
		CreatedAt time.Time `db:"created_at"`
	}

	Filter struct {
		ChatID  int64  `db:"chat_id"`
		Keyword string `db:"keyword"`
		Content string `db:"content"`
	}

	Note struct {
		ChatID  int64  `db:"chat_id"`
		Name    string `db:"name"`
		Content string `db:"content"`
	}

	// Greetings is the per-chat welcome/farewell configuration. Empty texts
	// fall back to the built-in messages when the side is enabled.
	Greetings struct {
		ChatID          int64  `db:"chat_id"`
		WelcomeEnabled  bool   `db:"welcome_enabled"`
		WelcomeText     string `db:"welcome_text"`
		FarewellEnabled bool   `db:"farewell_enabled"`
		FarewellText    string `db:"farewell_text"`
	}
)

const (
	FloodModeBan  = "ban"
	FloodModeKick = "kick"
	FloodModeMute = "mute"

	// MinFloodTime is the floor for the mute duration.
	MinFloodTime = 30 * time.Second

	// MinCaptchaTimeout is the floor for the challenge deadline.
	MinCaptchaTimeout = 60 * time.Second

	DefaultFloodLimit     = 5
	DefaultFloodMode      = FloodModeMute
	defaultFloodTime      = 5 * time.Minute
	defaultCaptchaTimeout = 5 * time.Minute
)

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:             chatID,
		Language:       "en",
		FloodLimit:     DefaultFloodLimit,
		FloodMode:      DefaultFloodMode,
		FloodTime:      defaultFloodTime.Nanoseconds(),
		CaptchaEnabled: false,
		CaptchaTimeout: defaultCaptchaTimeout.Nanoseconds(),
	}
}

func (s *Settings) GetFloodTime() time.Duration {
	if s == nil || s.FloodTime <= 0 {
		return defaultFloodTime
	}
	d := time.Duration(s.FloodTime)
	if d < MinFloodTime {
		return MinFloodTime
	}
	return d
}

func (s *Settings) GetCaptchaTimeout() time.Duration {
	if s == nil || s.CaptchaTimeout <= 0 {
		return defaultCaptchaTimeout
	}
	d := time.Duration(s.CaptchaTimeout)
	if d < MinCaptchaTimeout {
		return MinCaptchaTimeout
	}
	return d
}
