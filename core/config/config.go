package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// BotConfig describes one Telegram bot served by the process.
type BotConfig struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	// WebhookURL and WebhookPort are only used in webhook run mode.
	WebhookURL  string `yaml:"webhook_url"`
	WebhookPort int    `yaml:"webhook_port"`
}

// TelegramConfig holds Telegram settings shared by every bot.
type TelegramConfig struct {
	Bots []BotConfig `yaml:"bots"`
	// Tokens adds bots from a comma separated env list.
	Tokens  []string `yaml:"-" envconfig:"BOT_TOKENS"`
	AdminID int64    `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string   `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies the listener shared by webhook bots.
type WebhookConfig struct {
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// legacyTokenLimit bounds the BOT_TOKEN_<n> scan.
const legacyTokenLimit = 16

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads the core configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadInto fills dst from .env, the YAML file at path and the environment, in
// that order. Legacy BOT_TOKEN_<n> variables are collected when dst is or
// embeds Config.
func LoadInto(path string, dst any) error {
	if err := loadDotenv(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}

	if carrier, ok := dst.(interface{ CoreConfig() *Config }); ok {
		if core := carrier.CoreConfig(); core != nil {
			core.Telegram.Tokens = append(core.Telegram.Tokens, LegacyTokens(os.LookupEnv)...)
		}
	}
	return nil
}

// CoreConfig lets configs that embed Config expose it to LoadInto and the runner.
func (c *Config) CoreConfig() *Config {
	return c
}

func loadDotenv() error {
	path := strings.TrimSpace(os.Getenv("DOTENV_PATH"))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LegacyTokens reads BOT_TOKEN_1, BOT_TOKEN_2, ... until the first gap.
func LegacyTokens(lookup func(string) (string, bool)) []string {
	var out []string
	for i := 1; i <= legacyTokenLimit; i++ {
		v, ok := lookup("BOT_TOKEN_" + strconv.Itoa(i))
		if !ok {
			break
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if err := normalizeBots(&cfg.Telegram); err != nil {
		return err
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		ports := make(map[int]string, len(cfg.Telegram.Bots))
		for _, b := range cfg.Telegram.Bots {
			if strings.TrimSpace(b.WebhookURL) == "" {
				return fmt.Errorf("bot %q: webhook_url is required when telegram.run_mode is 'webhook'", b.Name)
			}
			if b.WebhookPort <= 0 {
				return fmt.Errorf("bot %q: webhook_port must be > 0 when telegram.run_mode is 'webhook'", b.Name)
			}
			if other, dup := ports[b.WebhookPort]; dup {
				return fmt.Errorf("bots %q and %q share webhook_port %d", other, b.Name, b.WebhookPort)
			}
			ports[b.WebhookPort] = b.Name
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// normalizeBots merges env tokens into the bot list, drops duplicates and
// assigns names to unnamed bots.
func normalizeBots(tg *TelegramConfig) error {
	bots := make([]BotConfig, 0, len(tg.Bots)+len(tg.Tokens))
	seen := make(map[string]struct{}, cap(bots))
	add := func(b BotConfig) {
		b.Token = strings.TrimSpace(b.Token)
		if b.Token == "" {
			return
		}
		if _, dup := seen[b.Token]; dup {
			return
		}
		seen[b.Token] = struct{}{}
		bots = append(bots, b)
	}
	for _, b := range tg.Bots {
		add(b)
	}
	for _, t := range tg.Tokens {
		add(BotConfig{Token: t})
	}
	if len(bots) == 0 {
		return fmt.Errorf("at least one telegram bot token is required")
	}

	names := make(map[string]struct{}, len(bots))
	for i := range bots {
		name := strings.TrimSpace(bots[i].Name)
		if name == "" {
			name = "bot" + strconv.Itoa(i+1)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("duplicate bot name %q", name)
		}
		names[name] = struct{}{}
		bots[i].Name = name
	}
	tg.Bots = bots
	tg.Tokens = nil
	return nil
}
