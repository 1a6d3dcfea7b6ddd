package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type Config struct {
	ChatBackend          string        `env:"CHAT_BACKEND,default=local" validate:"oneof=local remote"`
	RedisURL             string        `env:"REDIS_URL" validate:"required_if=ChatBackend remote"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required"`
	EchoDelay            time.Duration `env:"ECHO_DELAY,default=100ms" validate:"gte=0"`
	ExecutionDelay       time.Duration `env:"EXECUTION_DELAY,default=1s" validate:"gte=0"`
	MaxCachedMessages    int           `env:"MAX_CACHED_MESSAGES,default=0" validate:"gte=0"`
	NotificationInterval time.Duration `env:"NOTIFICATION_INTERVAL,default=10s" validate:"gt=0"`
	SeedNotifications    bool          `env:"SEED_NOTIFICATIONS,default=false"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=5s" validate:"gt=0"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
}

var validate = validator.New()

// LoadConfig reads the process environment and validates it.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Words splits CENSORED_WORDS on commas, empty entries are dropped.
func (c Config) Words() []string {
	return splitList(c.CensoredWords)
}

// Origins is empty when every origin is accepted.
func (c Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
