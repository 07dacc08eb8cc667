package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	coreconfig "github.com/botmesero/mesero/core/config"
	coretelegram "github.com/botmesero/mesero/core/telegram"
)

type testApp struct {
	bots   []string
	closed bool
}

func (a *testApp) TelegramRunOptions() ([]coretelegram.RunOptions, error) {
	out := make([]coretelegram.RunOptions, 0, len(a.bots))
	for _, name := range a.bots {
		out = append(out, coretelegram.RunOptions{Bot: coreconfig.BotConfig{Name: name, Token: name + ":t"}})
	}
	return out, nil
}

func (a *testApp) Close() error {
	a.closed = true
	return nil
}

func baseOptions(app *testApp, run func(context.Context, coretelegram.RunOptions) error) Options {
	return Options{
		ConfigEnvVar:      "MESERO_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return &coreconfig.Config{}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
	}
}

func TestRunStartsEveryBotWithSharedDispatcher(t *testing.T) {
	app := &testApp{bots: []string{"caja", "cocina", "barra"}}
	var (
		mu    sync.Mutex
		names []string
		disp  = map[any]struct{}{}
	)
	run := func(ctx context.Context, opts coretelegram.RunOptions) error {
		if opts.Dispatcher == nil {
			t.Errorf("bot %s has no dispatcher", opts.Bot.Name)
		}
		if err := opts.OnStart(ctx, coretelegram.Runtime{Name: opts.Bot.Name}); err != nil {
			return err
		}
		mu.Lock()
		names = append(names, opts.Bot.Name)
		disp[opts.Dispatcher] = struct{}{}
		mu.Unlock()
		return opts.OnStop(ctx, coretelegram.Runtime{Name: opts.Bot.Name})
	}
	if err := RunContext(context.Background(), baseOptions(app, run)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("bots run = %v", names)
	}
	if len(disp) != 1 {
		t.Fatalf("bots got %d dispatchers, want one shared", len(disp))
	}
	if !app.closed {
		t.Fatal("app not closed")
	}
}

func TestRunFailingBotCancelsOthers(t *testing.T) {
	app := &testApp{bots: []string{"caja", "cocina"}}
	boom := errors.New("unauthorized")
	run := func(ctx context.Context, opts coretelegram.RunOptions) error {
		if opts.Bot.Name == "cocina" {
			return boom
		}
		<-ctx.Done()
		return nil
	}
	err := RunContext(context.Background(), baseOptions(app, run))
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "cocina") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRequiresHooks(t *testing.T) {
	if err := RunContext(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without LoadConfig")
	}
	app := &testApp{}
	err := RunContext(context.Background(), baseOptions(app, nil))
	if err == nil || !strings.Contains(err.Error(), "no bots") {
		t.Fatalf("err = %v", err)
	}
}
