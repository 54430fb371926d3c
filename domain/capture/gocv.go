//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"gocv.io/x/gocv"
)

// CVAvailable reports whether the binary was built with OpenCV support.
const CVAvailable = true

// CVDevice opens a webcam through OpenCV.
type CVDevice struct {
	Index  int
	Logger *slog.Logger
}

var _ camera.Device = (*CVDevice)(nil)

func NewCVDevice(logger *slog.Logger, index int) *CVDevice {
	return &CVDevice{Index: index, Logger: logger}
}

func (d *CVDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := gocv.OpenVideoCapture(d.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %w", camera.ErrCameraUnavailable, d.Index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d is not open", camera.ErrCameraUnavailable, d.Index)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.Framerate))
	if d.Logger != nil {
		d.Logger.Debug("opencv capture opened",
			"index", d.Index,
			"width", vc.Get(gocv.VideoCaptureFrameWidth),
			"height", vc.Get(gocv.VideoCaptureFrameHeight),
		)
	}

	mat := gocv.NewMat()
	grab := func() (image.Image, error) {
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			return nil, errors.New("capture: empty frame")
		}
		return mat.ToImage()
	}
	release := func() error {
		return errors.Join(mat.Close(), vc.Close())
	}
	interval := defaultFrameInterval
	if c.Framerate > 0 {
		interval = time.Second / time.Duration(c.Framerate)
	}
	return newPumpStream(grab, interval, release, d.Logger), nil
}
