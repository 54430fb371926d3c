//go:build linux

package capture

import (
	"errors"
	"fmt"

	"github.com/soocke/leafscan-go/domain/camera"
	"golang.org/x/sys/unix"
)

// ProbeVideoDevice opens the V4L2 node read-write and closes it again.
func ProbeVideoDevice(path string) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return classifyErrno(path, err)
	}
	return unix.Close(fd)
}

func classifyErrno(path string, err error) error {
	switch {
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, path)
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %s", camera.ErrCameraUnavailable, path)
	default:
		return fmt.Errorf("%w: %s: %w", camera.ErrCameraUnavailable, path, err)
	}
}
