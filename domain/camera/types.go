package camera

import (
	"context"
	"image"
)

// DeviceState enumerates the states of the capture device owned by a Session.
type DeviceState int

const (
	StateIdle DeviceState = iota
	StateStarting
	StateActive
)

func (s DeviceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Permission is the last known OS-level camera permission.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Facing selects which physical camera a device should prefer.
type Facing int

const (
	FacingFront Facing = iota
	FacingRear
)

func (f Facing) String() string {
	if f == FacingRear {
		return "rear"
	}
	return "front"
}

// Constraints are acquisition hints passed to a Device. Backends treat them as
// ideals and may deliver a different native resolution.
type Constraints struct {
	Width     int
	Height    int
	Framerate int
	Facing    Facing
}

// DefaultConstraints mirrors the hints used by the scanner screen.
func DefaultConstraints() Constraints {
	return Constraints{Width: 1280, Height: 720, Framerate: 30, Facing: FacingFront}
}

// Device acquires capture streams. Open must return an error wrapping
// ErrPermissionDenied when the OS refuses access and ErrCameraUnavailable when
// no capture hardware exists.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired capture stream. Close releases the hardware and must be
// safe to call more than once.
type Stream interface {
	// Play begins frame delivery.
	Play(ctx context.Context) error
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
	// Size reports the native resolution, or zeros when unknown.
	Size() (width, height int)
	Close() error
}

// PreviewSink displays a live stream. The session attaches it after
// acquisition and detaches it before releasing the stream.
type PreviewSink interface {
	Attach(s Stream)
	Detach()
}

// Surface is an off-screen raster used to sample one frame during capture.
type Surface interface {
	Resize(width, height int)
	Draw(src image.Image) error
	Image() image.Image
}

// Snapshot is an immutable view of session state handed to listeners.
type Snapshot struct {
	State      DeviceState
	Permission Permission
	Facing     Facing
	Current    *Artifact
}

// Active reports whether a stream is live.
func (s Snapshot) Active() bool { return s.State == StateActive }

// Loading reports whether a stream is being acquired.
func (s Snapshot) Loading() bool { return s.State == StateStarting }

// Listener is invoked after every state change.
type Listener func(Snapshot)
