package main

import (
	"fmt"
	"log"
	"time"

	corecmd "github.com/botmesero/mesero/core/cmd"
	tgsender "github.com/botmesero/mesero/core/telegram/sender"
	"github.com/botmesero/mesero/internal/appconfig"
	"github.com/botmesero/mesero/internal/bot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return appconfig.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*appconfig.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.Bootstrap(appCfg)
		},
		Dispatcher: tgsender.Options{
			Workers:      4,
			QueueSize:    512,
			MaxRetries:   2,
			RetryBackoff: time.Second,
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
