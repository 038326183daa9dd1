package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const EnvDevelopment = "development"

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`

	Database struct {
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite postgres"`
		Path   string `env:"DATABASE_PATH" envDefault:"slotwatch.sqlite" validate:"required"`
	}

	Scheduler struct {
		IntervalMinutes  int           `env:"CHECK_INTERVAL_MINUTES" envDefault:"5" validate:"min=1"`
		Concurrency      int           `env:"CHECK_CONCURRENCY" envDefault:"4" validate:"min=1,max=64"`
		FailureThreshold int           `env:"FAILURE_WARNING_THRESHOLD" envDefault:"5" validate:"min=1"`
		ShutdownGrace    time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`
	}

	Scraper struct {
		Renderer    string        `env:"SCRAPER_RENDERER" envDefault:"chrome" validate:"oneof=chrome http"`
		AllowedHost string        `env:"SCRAPER_ALLOWED_HOST" envDefault:"needle.co.il" validate:"required,hostname"`
		PathPrefix  string        `env:"SCRAPER_PATH_PREFIX" envDefault:"/candidate-slots/" validate:"required,startswith=/"`
		Timeout     time.Duration `env:"SCRAPER_TIMEOUT" envDefault:"90s"`
		MaxDays     int           `env:"SCRAPER_MAX_DAYS" envDefault:"10" validate:"min=1"`
		ChromePath  string        `env:"CHROME_PATH"`
	}

	Telegram struct {
		BotToken  string  `env:"TELEGRAM_BOT_TOKEN"`
		APIBase   string  `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org" validate:"url"`
		RateLimit float64 `env:"TELEGRAM_RATE_LIMIT" envDefault:"25" validate:"gt=0"`
		Polling   bool    `env:"TELEGRAM_POLLING" envDefault:"true"`
	}

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10" validate:"min=1"`
	}

	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) (*Config, error) {
	return Load(env.Options{}, log)
}

// Load parses the environment (or opts.Environment, when set) and validates
// the result.
func Load(opts env.Options, log *zap.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.IsDevelopment() {
			log.Sugar().Infof("%s (credentials will be set to default in development env)", err)
			creds = map[string]string{"admin": "password"}
		} else {
			return nil, err
		}
	}
	cfg.creds = creds

	if !cfg.IsDevelopment() && !cfg.TelegramEnabled() && !cfg.MailgunEnabled() {
		return nil, errors.New("at least one of TELEGRAM_BOT_TOKEN or MAILGUN_DOMAIN/MAILGUN_API_KEY must be set")
	}
	return cfg, nil
}

func (cfg *Config) IsDevelopment() bool {
	return cfg.Env == EnvDevelopment
}

func (cfg *Config) TelegramEnabled() bool {
	return cfg.Telegram.BotToken != ""
}

func (cfg *Config) MailgunEnabled() bool {
	return cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != ""
}

func (cfg *Config) CheckInterval() time.Duration {
	return time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
