package overlay

import (
	"context"
	"errors"
	"log/slog"
)

// mediaOverlay is the handler for both video and audio targets. Video gets a
// player window; audio only shows an indicator.
type mediaOverlay struct {
	playback  Playback
	indicator Element
}

// startMedia starts looping playback, retrying once muted when playback with
// sound fails. If both attempts fail the overlay is still returned together
// with a *PlaybackWarning.
func startMedia(ctx context.Context, player Player, surface Surface, logger *slog.Logger, targetID, path string, video bool) (*mediaOverlay, error) {
	o := &mediaOverlay{}
	opts := PlayOptions{Video: video, Loop: true}
	pb, err := player.Play(ctx, path, opts)
	if err != nil {
		if logger != nil {
			logger.Info("overlay.autoplay rejected, retrying muted", "target", targetID, "error", err)
		}
		opts.Muted = true
		pb, err = player.Play(ctx, path, opts)
	}
	var warn error
	label := "♪ playing"
	if video {
		label = "▶ playing"
	}
	if err != nil {
		warn = &PlaybackWarning{TargetID: targetID, Err: err}
		label = "playback unavailable"
	} else {
		o.playback = pb
		if opts.Muted {
			label += " (muted)"
		}
	}
	el, lerr := surface.ShowLabel(label)
	if lerr != nil {
		if o.playback != nil {
			_ = o.playback.Stop()
		}
		return nil, lerr
	}
	o.indicator = el
	return o, warn
}

func (o *mediaOverlay) dispose() error {
	var errs []error
	if o.playback != nil {
		errs = append(errs, o.playback.Stop())
		o.playback = nil
	}
	if o.indicator != nil {
		errs = append(errs, o.indicator.Close())
		o.indicator = nil
	}
	return errors.Join(errs...)
}
