package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
)

// ScreenDevice streams a region of the desktop. It stands in for a webcam on
// machines without one, e.g. when scanning leaf photos shown in another
// window.
type ScreenDevice struct {
	// Region limits capture to a rectangle; nil captures the primary screen.
	Region *image.Rectangle
	// RegionFunc, when set, is consulted on every Open and overrides Region
	// with a non-nil result.
	RegionFunc func() *image.Rectangle
	Interval   time.Duration
	Logger     *slog.Logger

	grab Grabber // test hook
}

var _ camera.Device = (*ScreenDevice)(nil)

func NewScreenDevice(logger *slog.Logger, region *image.Rectangle, fps int) *ScreenDevice {
	d := &ScreenDevice{Region: region, Logger: logger}
	if fps > 0 {
		d.Interval = time.Second / time.Duration(fps)
	}
	return d
}

func (d *ScreenDevice) grabber() Grabber {
	if d.grab != nil {
		return d.grab
	}
	region := d.Region
	if d.RegionFunc != nil {
		if r := d.RegionFunc(); r != nil {
			region = r
		}
	}
	if region != nil && !region.Empty() {
		r := *region
		return func() (image.Image, error) { return GrabSelection(r) }
	}
	return func() (image.Image, error) { return Grab() }
}

// Open verifies the screen can be read and returns an unstarted stream.
func (d *ScreenDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := d.grabber()
	if _, err := g(); err != nil {
		return nil, fmt.Errorf("%w: screen: %w", camera.ErrCameraUnavailable, err)
	}
	interval := d.Interval
	if interval <= 0 && c.Framerate > 0 {
		interval = time.Second / time.Duration(c.Framerate)
	}
	return newPumpStream(g, interval, nil, d.Logger), nil
}
