package capture

import (
	"image"
	"time"
)

// Grabber produces one frame from a capture backend.
type Grabber func() (image.Image, error)

// FrameSnapshot carries the latest captured frame and metadata.
type FrameSnapshot struct {
	Image      image.Image
	CapturedAt time.Time
	Sequence   uint64
}

// CaptureStats summarises pump loop behaviour for instrumentation.
type CaptureStats struct {
	Captures       uint64
	Skipped        uint64
	AvgCapture     time.Duration
	LastCapture    time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
}
