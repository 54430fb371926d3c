//go:build !gocv

package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soocke/leafscan-go/domain/camera"
)

// CVAvailable reports whether the binary was built with OpenCV support.
const CVAvailable = false

// CVDevice is unavailable without the gocv build tag.
type CVDevice struct {
	Index  int
	Logger *slog.Logger
}

var _ camera.Device = (*CVDevice)(nil)

func NewCVDevice(logger *slog.Logger, index int) *CVDevice {
	return &CVDevice{Index: index, Logger: logger}
}

func (d *CVDevice) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	return nil, fmt.Errorf("%w: built without opencv (use -tags gocv)", camera.ErrCameraUnavailable)
}
