package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=gatekeeper,federation,moderation,replies,greetings"`
		LogLevel         int      `env:"LOG_LEVEL,default=2"`
		DotPath          string   `env:"DOT_PATH,default=~/.lemon"`
		LogChannelID     int64    `env:"LOG_CHANNEL_ID"`
		MetricsAddr      string   `env:"METRICS_ADDR,default=:2112"`
		Flood            Flood
		Captcha          Captcha
		Warnings         Warnings
		Federations      Federations
	}

	Flood struct {
		Limit  int           `env:"FLOOD_LIMIT,default=5"`
		Mode   string        `env:"FLOOD_MODE,default=mute"`
		Window time.Duration `env:"FLOOD_WINDOW,default=5s"`
		Time   time.Duration `env:"FLOOD_TIME,default=5m"`
	}

	Captcha struct {
		Enabled    bool          `env:"CAPTCHA_ENABLED,default=false"`
		Timeout    time.Duration `env:"CAPTCHA_TIMEOUT,default=5m"`
		CodeLength int           `env:"CAPTCHA_CODE_LENGTH,default=6"`
	}

	Warnings struct {
		Threshold int `env:"MAX_WARNS,default=3"`
	}

	Federations struct {
		FanoutParallelism int `env:"FED_FANOUT_PARALLELISM,default=4"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("LEMON_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		dotPath, err := homedir.Expand(cfg.DotPath)
		if err != nil {
			globalErr = fmt.Errorf("expand dot path: %w", err)
			return
		}
		cfg.DotPath = dotPath
		cfg.Flood.Mode = strings.ToLower(cfg.Flood.Mode)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
