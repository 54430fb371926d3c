package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/soocke/leafscan-go/config"
	"github.com/soocke/leafscan-go/ui/theme"
)

const (
	tick = 100 * time.Millisecond
)

type app struct {
	config    *config.Config
	cfgPath   string
	logger    *slog.Logger
	container *AppContainer
	afterID   string
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger) *app {
	a := &app{config: cfg, cfgPath: cfgPath, logger: logger}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the window, kicks off the update loop and blocks until the
// window is closed.
func (a *app) Start() error {
	theme.InitStyles()
	c, err := BuildContainer(a.ctx, a.config, a.cfgPath, a.logger, a.exitHandler, a.scheduleUpdate)
	if err != nil {
		Destroy(App)
		return err
	}
	a.container = c
	c.Scanner.CheckPermission()

	a.scheduleUpdate()
	App.Wait()
	return nil
}

func (a *app) exitHandler() {
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	a.cancel()
	if err := a.container.Close(); err != nil && a.logger != nil {
		a.logger.Warn("shutdown", "error", err)
	}
	Destroy(App)
}

func (a *app) scheduleUpdate() {
	// TclAfter keeps every view update on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() {
		if a.container != nil {
			a.container.Loop.Tick()
		}
	})
}
