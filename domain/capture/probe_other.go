//go:build !linux

package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/soocke/leafscan-go/domain/camera"
)

// ProbeVideoDevice checks that the device node can be opened.
func ProbeVideoDevice(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return classifyErrno(path, err)
	}
	return f.Close()
}

func classifyErrno(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", camera.ErrCameraUnavailable, path)
	default:
		return fmt.Errorf("%w: %s: %w", camera.ErrCameraUnavailable, path, err)
	}
}
