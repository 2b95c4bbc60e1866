// Package overlay owns the single live overlay shown for the active target.
//
// The four overlay kinds are separate handlers selected by content type;
// they share no implementation. Rendering and media playback are reached
// through the Surface, Player and Animator collaborators.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrDeferred is returned by Activate while a link overlay is open. The
	// activation is applied once the user closes the link.
	ErrDeferred = errors.New("overlay: activation deferred until link is closed")
	// ErrNoPayload is returned when a downloadable kind has no local file.
	ErrNoPayload = errors.New("overlay: asset has no local payload")
)

// PlaybackWarning reports that media could not start even muted. The overlay
// is still constructed.
type PlaybackWarning struct {
	TargetID string
	Err      error
}

func (w *PlaybackWarning) Error() string {
	return fmt.Sprintf("overlay: playback for %s unavailable: %v", w.TargetID, w.Err)
}

func (w *PlaybackWarning) Unwrap() error { return w.Err }

// Element is anything shown on the surface.
type Element interface {
	Close() error
}

// ImageElement is a surface element whose picture can be replaced.
type ImageElement interface {
	Element
	Update(img image.Image) error
}

// Surface is the render collaborator.
type Surface interface {
	// ShowLabel shows a minimal text indicator.
	ShowLabel(text string) (Element, error)
	// ShowImage shows a picture that can later be updated in place.
	ShowImage(img image.Image) (ImageElement, error)
	// OpenPage embeds or opens a navigable page.
	OpenPage(url string) (Element, error)
}

// PlayOptions selects how media is played.
type PlayOptions struct {
	Video bool
	Loop  bool
	Muted bool
}

// Playback is a running media session.
type Playback interface {
	Stop() error
}

// Player is the media collaborator.
type Player interface {
	Play(ctx context.Context, path string, opts PlayOptions) (Playback, error)
}

// Animator schedules a repeating callback. step receives the time elapsed
// since the previous call. The returned function cancels the schedule.
type Animator interface {
	Start(interval time.Duration, step func(dt time.Duration)) (stop func())
}

// SceneLoader decodes a 3D scene from a local file.
type SceneLoader interface {
	Load(ctx context.Context, path string) (*Scene, error)
}

// handler is one live overlay variant.
type handler interface {
	dispose() error
}
