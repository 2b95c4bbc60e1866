package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/assets"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/store"
)

type idleFrames struct{}

func (idleFrames) LatestFrame() capture.FrameSnapshot { return capture.FrameSnapshot{} }
func (idleFrames) Running() bool                      { return false }

type fakeStore struct {
	recs []store.TargetRecord
	err  error
}

func (s *fakeStore) Targets(context.Context) ([]store.TargetRecord, error) { return s.recs, s.err }
func (s *fakeStore) RecordScan(context.Context, analytics.ScanEvent) error  { return nil }

func newController() *Controller {
	return &Controller{
		Config: config.DefaultConfig(),
		Frames: idleFrames{},
		Source: asset.MultiSource{assets.Scheme: assets.Source{}},
	}
}

func TestController_BeginWithSamples(t *testing.T) {
	c := newController()
	require.Nil(t, c.Loop())

	require.NoError(t, c.Begin())
	first := c.Loop()
	require.NotNil(t, first)
	_, ok := c.Stats()
	assert.True(t, ok)

	require.NoError(t, c.Begin())
	assert.Same(t, first, c.Loop(), "Begin while live must keep the session")

	c.End()
	assert.Nil(t, c.Loop())
	_, ok = c.Stats()
	assert.False(t, ok)
	c.End()
	c.CloseLink()
}

func TestController_RegistersSampleTargets(t *testing.T) {
	c := newController()
	require.NoError(t, c.Begin())
	defer c.End()
	ids := c.loop.Load().Session().Registry.IDs()
	assert.ElementsMatch(t, []string{"sample-cube", "sample-link"}, ids)
}

func TestController_NoUsableTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	data := `[{"id":"ghost","marker_image_url":"missing.png","content_url":"https://example.com","content_type":"link"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c := newController()
	c.Source = asset.NewDefaultSource(nil, "")
	c.TargetsPath = path
	err := c.Begin()
	require.ErrorIs(t, err, ErrNoTargets)
	assert.Nil(t, c.Loop())
}

func TestController_StorePrecedence(t *testing.T) {
	samples, err := assets.SampleTargets()
	require.NoError(t, err)

	c := newController()
	c.Store = &fakeStore{recs: samples[:1]}
	c.TargetsPath = filepath.Join(t.TempDir(), "unused.json")
	require.NoError(t, c.Begin())
	defer c.End()
	assert.Equal(t, []string{samples[0].ID}, c.loop.Load().Session().Registry.IDs())
}

func TestController_EmptyStoreFallsBack(t *testing.T) {
	c := newController()
	c.Store = &fakeStore{}
	require.NoError(t, c.Begin())
	defer c.End()
	assert.Equal(t, 2, c.loop.Load().Session().Registry.Len())
}

func TestController_StoreError(t *testing.T) {
	c := newController()
	c.Store = &fakeStore{err: errors.New("disk gone")}
	err := c.Begin()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Nil(t, c.Loop())
}
