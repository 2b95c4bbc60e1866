package overlay

import (
	"errors"
	"time"
)

const (
	sceneSize      = 256
	animationFrame = 40 * time.Millisecond
)

// modelOverlay is the 3D handler. It shows a placeholder until its scene
// arrives, then renders the scene with continuous rotation.
type modelOverlay struct {
	placeholder Element
	view        ImageElement
	scene       *Scene
	angle       float64
	stop        func()
}

// attach swaps the placeholder for the rendered scene and starts rotating it
// at degPerSec.
func (o *modelOverlay) attach(surface Surface, animator Animator, scene *Scene, degPerSec float64) error {
	view, err := surface.ShowImage(scene.Render(0, sceneSize))
	if err != nil {
		return err
	}
	if o.placeholder != nil {
		_ = o.placeholder.Close()
		o.placeholder = nil
	}
	o.view, o.scene = view, scene
	if animator != nil && degPerSec != 0 {
		o.stop = animator.Start(animationFrame, func(dt time.Duration) {
			if o.view == nil {
				return
			}
			o.angle += degPerSec * dt.Seconds()
			_ = o.view.Update(o.scene.Render(o.angle, sceneSize))
		})
	}
	return nil
}

func (o *modelOverlay) dispose() error {
	if o.stop != nil {
		o.stop()
		o.stop = nil
	}
	var errs []error
	if o.view != nil {
		errs = append(errs, o.view.Close())
		o.view = nil
	}
	if o.placeholder != nil {
		errs = append(errs, o.placeholder.Close())
		o.placeholder = nil
	}
	o.scene = nil
	return errors.Join(errs...)
}
