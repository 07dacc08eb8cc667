// Package appconfig extends the core configuration with the settings of the
// menu bot: database, response texts and greeting clock.
package appconfig

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/botmesero/mesero/core/config"
	coredatabase "github.com/botmesero/mesero/core/database"
)

// DefaultBotName is used in the greeting when app.bot_name is empty.
const DefaultBotName = "BotMesero"

// AppConfig holds settings of the menu bot itself.
type AppConfig struct {
	// BotName is how the bot introduces itself in the greeting.
	BotName string `yaml:"bot_name" envconfig:"APP_BOT_NAME"`
	// TextsPath points to a JSON file overriding built-in texts.
	TextsPath string `yaml:"texts_path" envconfig:"APP_TEXTS_PATH"`
	// Timezone is an IANA zone name used to pick the greeting; empty means local time.
	Timezone string `yaml:"timezone" envconfig:"APP_TIMEZONE"`
	// SeedDemo fills an empty catalog with a demo menu at startup. Meant for
	// sqlite development runs.
	SeedDemo bool `yaml:"seed_demo" envconfig:"APP_SEED_DEMO"`

	location *time.Location
}

// Config is the full configuration file of the service.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	App      AppConfig           `yaml:"app"`
}

// Load reads path, applies env overrides and validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the loaded configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	return c.App.normalize()
}

func (a *AppConfig) normalize() error {
	a.BotName = strings.TrimSpace(a.BotName)
	if a.BotName == "" {
		a.BotName = DefaultBotName
	}
	a.TextsPath = strings.TrimSpace(a.TextsPath)
	a.Timezone = strings.TrimSpace(a.Timezone)
	if a.Timezone == "" {
		a.location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return fmt.Errorf("app.timezone %q: %w", a.Timezone, err)
	}
	a.location = loc
	return nil
}

// Location returns the zone used for the greeting clock.
func (a AppConfig) Location() *time.Location {
	if a.location == nil {
		return time.Local
	}
	return a.location
}
