package assets

import (
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/overlay"
	"github.com/soocke/marker-lens-go/domain/recognition"
)

func TestSampleTargets(t *testing.T) {
	recs, err := SampleTargets()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, recognition.Content3D, recs[0].ContentType)
	assert.Equal(t, "builtin:cube.glb", recs[0].ContentURL)
	assert.Equal(t, recognition.ContentLink, recs[1].ContentType)
}

func TestSource_Marker(t *testing.T) {
	rc, err := Source{}.Open(context.Background(), "builtin:marker-2.png")
	require.NoError(t, err)
	defer rc.Close()
	img, err := png.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, Marker(2).Bounds(), img.Bounds())

	a, b := Marker(1), Marker(2)
	assert.NotEqual(t, a.Pix, b.Pix)
	assert.Equal(t, a.Pix, Marker(1).Pix, "markers are deterministic")
}

func TestSource_CubeLoadsAsScene(t *testing.T) {
	rc, err := Source{}.Open(context.Background(), "builtin:cube.glb")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cube.glb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	scene, err := overlay.GLTFLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, scene.Triangles, 12)
}

func TestSource_Unknown(t *testing.T) {
	_, err := Source{}.Open(context.Background(), "builtin:nothing.bin")
	assert.Error(t, err)
	_, err = Source{}.Open(context.Background(), "marker-1.png")
	assert.Error(t, err)
	_, err = Source{}.Open(context.Background(), "builtin:marker-x.png")
	assert.Error(t, err)
}

func TestSource_ThroughMultiSource(t *testing.T) {
	src := asset.NewDefaultSource(nil, t.TempDir())
	src[Scheme] = Source{}
	img, err := asset.LoadImage(context.Background(), src, "builtin:marker-1.png")
	require.NoError(t, err)
	assert.Equal(t, 480, img.Bounds().Dx())
}
