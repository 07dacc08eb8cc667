package bot

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/botmesero/mesero/core/bootstrap"
	tg "github.com/botmesero/mesero/core/telegram"
	"github.com/botmesero/mesero/core/telegram/router"
	"github.com/botmesero/mesero/internal/appconfig"
	"github.com/botmesero/mesero/internal/catalog"
	"github.com/botmesero/mesero/internal/menu"
	"github.com/botmesero/mesero/internal/texts"
	"github.com/botmesero/mesero/migrations"
)

// App is the bootstrapped service: one registry and database shared by
// every configured bot.
type App struct {
	cfg      *appconfig.Config
	db       *sqlx.DB
	handlers *Handlers
	registry *tg.Registry
}

// Bootstrap initialises logging, migrates and opens the database, loads the
// texts and registers the handlers.
func Bootstrap(cfg *appconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Seeders:    Seeders(cfg),
	})
	if err != nil {
		return nil, err
	}

	app, err := NewApp(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return app, nil
}

// Seeders returns the startup seeders enabled by cfg.
func Seeders(cfg *appconfig.Config) []bootstrap.Seeder {
	if !cfg.App.SeedDemo {
		return nil
	}
	return []bootstrap.Seeder{bootstrap.SeederFunc(catalog.SeedDemo)}
}

// NewApp wires the handlers on an open database.
func NewApp(cfg *appconfig.Config, db *sqlx.DB) (*App, error) {
	tx, err := texts.Load(cfg.App.TextsPath)
	if err != nil {
		return nil, err
	}
	nav := menu.New(catalog.NewStore(db), tx, menu.Options{
		BotName:  cfg.App.BotName,
		Location: cfg.App.Location(),
	})
	h := NewHandlers(nav, tx)
	reg := tg.NewRegistry()
	if err := h.Register(reg); err != nil {
		return nil, fmt.Errorf("bot: register handlers: %w", err)
	}
	return &App{cfg: cfg, db: db, handlers: h, registry: reg}, nil
}

// TelegramRunOptions returns one run configuration per configured bot.
func (a *App) TelegramRunOptions() ([]tg.RunOptions, error) {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.handlers.Hint,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{})...)

	out := make([]tg.RunOptions, 0, len(a.cfg.Telegram.Bots))
	for _, b := range a.cfg.Telegram.Bots {
		out = append(out, tg.RunOptions{
			Config:      &a.cfg.Config,
			Bot:         b,
			Registry:    a.registry,
			Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, b.Name, a.handlers.Limited),
			Routes:      routes,
		})
	}
	return out, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
