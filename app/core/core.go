// Package core assembles the services shared by the desktop app and the HTTP
// server: the capture device, the camera session, the prediction client and
// the scan history.
package core

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/config"
	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/capture"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
	"github.com/soocke/leafscan-go/store"
)

// Core owns the long-lived services. Close releases them.
type Core struct {
	Config    *config.Config
	Logger    *slog.Logger
	Device    camera.Device // nil when the camera backend is "none"
	Session   *camera.Session
	Handoff   *camera.Handoff
	Catalog   *fertilizer.Catalog
	Diagnosis *diagnosis.Client
	History   *store.Store // nil when history is disabled or unavailable
}

// Build constructs the services from cfg. preview receives the live stream and
// region, when non-nil, overrides the configured screen capture rectangle.
// A history database that cannot be opened is logged and skipped.
func Build(cfg *config.Config, logger *slog.Logger, preview camera.PreviewSink, region func() *image.Rectangle) (*Core, error) {
	c := &Core{Config: cfg, Logger: logger, Handoff: camera.NewHandoff(), Catalog: fertilizer.Default()}
	c.Device = NewDevice(cfg.Camera, logger, region)
	c.Session = camera.NewSession(camera.Options{
		Device:  c.Device,
		Preview: preview,
		Constraints: camera.Constraints{
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			Framerate: cfg.Camera.FPS,
		},
		Handheld: cfg.Camera.Handheld,
		Logger:   logger,
	})
	client, err := diagnosis.New(diagnosis.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		CacheSize: cfg.API.CacheSize,
		Catalog:   c.Catalog,
		Logger:    logger,
	})
	if err != nil {
		c.Session.Close()
		return nil, err
	}
	c.Diagnosis = client
	if cfg.History.Enabled {
		h, err := store.Open(cfg.History.Path)
		if err != nil {
			if logger != nil {
				logger.Warn("scan history disabled", "path", cfg.History.Path, "error", err)
			}
		} else {
			c.History = h
		}
	}
	return c, nil
}

// NewDevice selects the capture backend. A configured video node wraps the
// device in a permission probe.
func NewDevice(cc config.CameraConfig, logger *slog.Logger, region func() *image.Rectangle) camera.Device {
	var dev camera.Device
	switch cc.Backend {
	case config.BackendNone:
		return nil
	case config.BackendOpenCV:
		if !capture.CVAvailable && logger != nil {
			logger.Warn("opencv backend selected but binary built without opencv")
		}
		dev = capture.NewCVDevice(logger, cc.Index)
	default:
		sd := capture.NewScreenDevice(logger, cc.Region(), cc.FPS)
		sd.RegionFunc = region
		dev = sd
	}
	if cc.Node != "" {
		dev = &capture.Guard{Node: cc.Node, Device: dev}
	}
	return dev
}

// Close tears down the session and closes the history database.
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	c.Session.Close()
	if c.History != nil {
		return c.History.Close()
	}
	return nil
}

