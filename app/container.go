package app

import (
	"context"
	"log/slog"

	"github.com/soocke/leafscan-go/app/core"
	"github.com/soocke/leafscan-go/config"
	"github.com/soocke/leafscan-go/ui/model"
	"github.com/soocke/leafscan-go/ui/presenter"
	"github.com/soocke/leafscan-go/ui/view"
)

// AppContainer assembles services, models, presenters and the root view.
type AppContainer struct {
	Core     *core.Core
	Model    *model.ScannerModel
	RootView *view.RootView
	Region   view.RegionOverlay

	// Presenters
	Scanner *presenter.ScannerPresenter
	Results *presenter.ResultsPresenter
	State   *presenter.StatePresenter
	Loop    *presenter.Loop

	unsubscribe func()
}

// BuildContainer builds the widget tree and wires it to the services. It must
// run on the Tk thread. schedule re-arms the update loop.
func BuildContainer(ctx context.Context, cfg *config.Config, cfgPath string, logger *slog.Logger, exit func(), schedule func()) (*AppContainer, error) {
	c := &AppContainer{Model: model.NewScannerModel()}
	c.Region = view.NewRegionOverlay(cfg, cfgPath, logger)
	c.RootView = view.NewRootView(cfg, cfgPath, logger)
	// Handlers resolve presenters lazily; presenter methods are nil-safe.
	c.RootView.Build(view.Handlers{
		Start:      func() { c.Scanner.Start() },
		Shutter:    func() { c.Scanner.Shutter() },
		Stop:       func() { c.Scanner.Stop() },
		ChooseFile: func(path string) { c.Scanner.ChooseFile(path) },
		Analyze:    func() { c.Scanner.Analyze() },
		Discard:    func() { c.Scanner.Discard() },
		Region:     c.Region.OpenOrFocus,
		Exit:       exit,
	})

	svc, err := core.Build(cfg, logger, c.RootView.Preview, c.Region.ActiveRect)
	if err != nil {
		return nil, err
	}
	c.Core = svc

	var history presenter.HistoryRecorder
	if svc.History != nil {
		history = svc.History
	}
	c.Scanner = presenter.NewScannerPresenter(ctx, svc.Session, svc.Handoff, c.Model, c.RootView, logger)
	c.Results = presenter.NewResultsPresenter(ctx, svc.Handoff, svc.Diagnosis, history, c.Model, c.RootView, logger)
	c.State = presenter.NewStatePresenter(c.Model, c.RootView)
	c.unsubscribe = svc.Session.Subscribe(c.State.OnSnapshot)
	c.State.OnSnapshot(svc.Session.Snapshot())
	c.Loop = presenter.NewLoop(c.Scanner, c.Results, c.State, c.RootView.Preview, schedule)
	return c, nil
}

// Close stops the camera and releases the services.
func (c *AppContainer) Close() error {
	if c == nil || c.Core == nil {
		return nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	return c.Core.Close()
}
