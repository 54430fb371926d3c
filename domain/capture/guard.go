package capture

import (
	"context"

	"github.com/soocke/leafscan-go/domain/camera"
)

// Guard checks OS access to a video node before delegating to Device, so a
// refused open surfaces as camera.ErrPermissionDenied instead of a generic
// backend failure.
type Guard struct {
	Node   string
	Device camera.Device
}

var _ camera.Device = (*Guard)(nil)

func (g *Guard) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if g.Node != "" {
		if err := ProbeVideoDevice(g.Node); err != nil {
			return nil, err
		}
	}
	if g.Device == nil {
		return nil, camera.ErrCameraUnavailable
	}
	return g.Device.Open(ctx, c)
}
