package camera

import "errors"

var (
	ErrPermissionDenied    = errors.New("camera: permission denied")
	ErrCameraUnavailable   = errors.New("camera: unavailable")
	ErrStreamStartFailed   = errors.New("camera: stream start failed")
	ErrNotActive           = errors.New("camera: not active")
	ErrCaptureEncodeFailed = errors.New("camera: capture encode failed")
	ErrInvalidFileType     = errors.New("camera: file is not an image")
	ErrFileTooLarge        = errors.New("camera: file too large")
	ErrEmptyFile           = errors.New("camera: file is empty")
	ErrStartAborted        = errors.New("camera: start aborted")
	ErrSessionClosed       = errors.New("camera: session closed")
)
