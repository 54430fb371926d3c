package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

// Grab returns a capture of the primary screen.
func Grab() (*image.RGBA, error) {
	return screenshot.CaptureScreen()
}

// GrabSelection captures the given screen rectangle.
func GrabSelection(area image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(area)
}

// ScreenBounds reports the primary screen rectangle.
func ScreenBounds() (image.Rectangle, error) {
	return screenshot.ScreenRect()
}
