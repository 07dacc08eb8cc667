package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/botmesero/mesero/core/logger"
	"github.com/botmesero/mesero/core/telegram/commands"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrDuplicate is returned when a command or callback key is taken.
	ErrDuplicate = errors.New("telegram: already registered")
	// ErrInvalidRoute is returned for a registration missing a name or handler.
	ErrInvalidRoute = errors.New("telegram: invalid registration")
)

// Registry maps slash commands and callback keys to handlers. One registry
// may serve several bots; populate it before the first bot starts.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	notFound tele.HandlerFunc
	fallback tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler
// answers with a generic toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		notFound: func(c tele.Context) error {
			return tghelpers.Answer(c, "Unsupported action")
		},
	}
}

func slashed(name string) string {
	return "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Aliases are matched with or without their slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	var err error
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		err = fmt.Errorf("%w: command %q needs a slash prefix", ErrInvalidRoute, name)
	case cmd.Handler == nil || cmd.Description == "":
		err = fmt.Errorf("%w: command %q needs a handler and a description", ErrInvalidRoute, name)
	}

	r.mu.Lock()
	if err == nil {
		if _, taken := r.commands[name]; taken {
			err = fmt.Errorf("%w: command %s", ErrDuplicate, name)
		} else {
			r.commands[name] = cmd
			for _, a := range cmd.Aliases {
				r.aliases[slashed(a)] = name
			}
		}
	}
	r.mu.Unlock()

	if err != nil {
		logger.Warn(context.Background(), "tg.wire", "register.command.skip",
			slog.String("name", name),
			slog.String("err", err.Error()),
		)
	}
	return err
}

// LookupCommand resolves a command name or alias, with or without its
// slash, to the canonical name and definition.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = slashed(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canon, ok := r.aliases[name]; ok {
		name = canon
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// ListCommands returns the commands for the Telegram command menu, sorted
// by name. With visibleOnly, hidden and admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	return list
}

// RegisterCallback maps a callback key to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	var err error
	if strings.TrimSpace(key) == "" || h == nil {
		err = fmt.Errorf("%w: callback %q", ErrInvalidRoute, key)
	} else {
		r.mu.Lock()
		if _, taken := r.callbacks[key]; taken {
			err = fmt.Errorf("%w: callback %s", ErrDuplicate, key)
		} else {
			r.callbacks[key] = h
		}
		r.mu.Unlock()
	}
	if err != nil {
		logger.Warn(context.Background(), "tg.wire", "register.callback.skip",
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
	}
	return err
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.notFound = h
	}
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.notFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.fallback = h
}

// TextFallback returns the handler for text that is not a command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.fallback
}

// InitBotCommands publishes the visible commands as the bot's command menu.
func InitBotCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, "tg.wire", "register.commands.set_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.Debug(ctx, "tg.wire", "register.commands.set", slog.Int("count", len(list)))
}
