package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lueurxax/wikirender/internal/core/errors"
)

const (
	maxMessageLimit = 2000
	maxPort         = 65535
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Wiki API
	WikiAPIURL       string        `env:"WIKI_API_URL"`
	WikiPageLinkBase string        `env:"WIKI_PAGE_LINK_BASE"`
	WikiFetchRPS     float64       `env:"WIKI_FETCH_RPS" envDefault:"2"`
	WikiFetchTimeout time.Duration `env:"WIKI_FETCH_TIMEOUT" envDefault:"30s"`

	// Rendering
	RenderLocale           string   `env:"RENDER_LOCALE" envDefault:"en"`
	RenderMessageLimit     int      `env:"RENDER_MESSAGE_LIMIT" envDefault:"2000"`
	RenderExtractLimit     int      `env:"RENDER_EXTRACT_LIMIT" envDefault:"1000"`
	RenderDefaultThumbnail string   `env:"RENDER_DEFAULT_THUMBNAIL" envDefault:"https://static.wikia.nocookie.net/common/skins/common/images/wiki.png"`
	RenderIgnoreRulesFile  string   `env:"RENDER_IGNORE_RULES_FILE"`
	RenderIgnoredClasses   []string `env:"RENDER_IGNORED_CLASSES" envSeparator:","`

	// HTTP surface
	HTTPPort         int     `env:"HTTP_PORT" envDefault:"8080"`
	HTTPRateLimitRPS float64 `env:"HTTP_RATE_LIMIT_RPS" envDefault:"20"`
	HTTPTrustProxy   bool    `env:"HTTP_TRUST_PROXY" envDefault:"false"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, errors.ErrInvalidConfig)
	}

	if c.RenderMessageLimit <= 0 || c.RenderMessageLimit > maxMessageLimit {
		return fmt.Errorf("RENDER_MESSAGE_LIMIT must be in 1..%d: %w", maxMessageLimit, errors.ErrInvalidConfig)
	}

	if c.RenderExtractLimit <= 0 {
		return fmt.Errorf("RENDER_EXTRACT_LIMIT must be positive: %w", errors.ErrInvalidConfig)
	}

	if c.WikiFetchRPS <= 0 || c.HTTPRateLimitRPS <= 0 {
		return fmt.Errorf("rate limits must be positive: %w", errors.ErrInvalidConfig)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > maxPort {
		return fmt.Errorf("HTTP_PORT %d: %w", c.HTTPPort, errors.ErrInvalidConfig)
	}

	return nil
}

// applyAliases honours the older variable names when the new ones are unset.
func applyAliases(cfg *Config) {
	if !hasEnv("HTTP_PORT") {
		setIntFromEnv("HEALTH_PORT", &cfg.HTTPPort)
	}

	if !hasEnv("WIKI_FETCH_RPS") {
		setFloatFromEnv("WEB_FETCH_RPS", &cfg.WikiFetchRPS)
	}

	if !hasEnv("WIKI_FETCH_TIMEOUT") {
		setDurationFromEnv("WEB_FETCH_TIMEOUT", &cfg.WikiFetchTimeout)
	}

	if !hasEnv("WIKI_PAGE_LINK_BASE") {
		setStringFromEnv("PAGE_LINK_BASE", &cfg.WikiPageLinkBase)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setFloatFromEnv(key string, target *float64) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return
	}

	*target = parsed
}

func setDurationFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}
