package capture

import "image"

// FrameSource provides read-only access to captured frames.
// LatestFrame returns the freshest snapshot while Running reports activity.
type FrameSource interface {
	LatestFrame() FrameSnapshot
	Running() bool
}

// RegionFunc returns the screen rectangle to capture, or nil for the full
// screen.
type RegionFunc func() *image.Rectangle

// Grabber reads pixels from the screen. The zero region means full screen.
type Grabber interface {
	Grab(region image.Rectangle) (*image.RGBA, error)
}

// GrabberFunc adapts a function to Grabber.
type GrabberFunc func(region image.Rectangle) (*image.RGBA, error)

func (f GrabberFunc) Grab(region image.Rectangle) (*image.RGBA, error) { return f(region) }

// Screen is the platform screen grabber.
var Screen Grabber = GrabberFunc(grabScreen)

func grabScreen(region image.Rectangle) (*image.RGBA, error) {
	if region.Empty() {
		return Grab()
	}
	return GrabSelection(region)
}
