package scan

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/recognition"
	"github.com/soocke/marker-lens-go/store"
)

const markerLoadConcurrency = 4

// Start loads the marker image of every record through src and registers
// the usable ones in record order. Records whose image cannot be loaded or
// yields no usable signature are skipped. It returns the registered count.
func (l *Loop) Start(ctx context.Context, src asset.Source, records []store.TargetRecord) (int, error) {
	if l == nil || l.sess == nil {
		return 0, fmt.Errorf("scan: start without session")
	}
	if l.torn.Load() {
		return 0, fmt.Errorf("scan: session torn down")
	}
	imgs := make([]image.Image, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(markerLoadConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			img, err := asset.LoadImage(gctx, src, rec.MarkerImageURL)
			if err != nil {
				if l.logger != nil {
					l.logger.Warn("scan.marker load", "target", rec.ID, "error", err)
				}
				return nil
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for i, rec := range records {
		if imgs[i] == nil {
			continue
		}
		content := recognition.Content{Type: rec.ContentType, Locator: rec.ContentURL}
		if l.sess.Registry.Register(rec.ID, imgs[i], content) {
			n++
		}
	}
	if l.logger != nil {
		l.logger.Info("scan.start", "session", l.sess.ID.String(), "targets", n, "records", len(records))
	}
	return n, nil
}
