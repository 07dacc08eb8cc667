package router

import (
	"log/slog"
	"strings"

	"github.com/botmesero/mesero/core/logger"
	tg "github.com/botmesero/mesero/core/telegram"
	"github.com/botmesero/mesero/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers with a handler summary log line and
// the admin check for admin-only commands. Aliases get their own routes.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := summarized(handlerName(cmd), def.Handler)
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			if alias = strings.TrimPrefix(strings.TrimSpace(alias), "/"); alias != "" {
				routes = append(routes, tg.Route{Endpoint: "/" + alias, Handler: h})
			}
		}
	}

	logger.TWire.Info("routes ready",
		slog.String("event", "wire.commands"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return newSummary(name).run(c, h)
	}
}
