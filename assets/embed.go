// Package assets bundles the sample targets shipped with the scanner. The
// marker images and the 3D payload are generated on demand and served under
// the "builtin:" locator scheme.
package assets

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/store"
)

// Scheme is the locator scheme served by Source.
const Scheme = "builtin"

//go:embed sample_targets.json
var sampleTargetsJSON []byte

// SampleTargets returns the bundled target records.
func SampleTargets() ([]store.TargetRecord, error) {
	return store.ParseTargetsJSON(sampleTargetsJSON, "")
}

// Source serves builtin locators: "builtin:marker-<n>.png" and
// "builtin:cube.glb".
type Source struct{}

var _ asset.Source = Source{}

func (Source) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	name, ok := strings.CutPrefix(locator, Scheme+":")
	if !ok {
		return nil, fmt.Errorf("assets: not a builtin locator %q", locator)
	}
	var data []byte
	switch {
	case name == "cube.glb":
		b, err := CubeGLB()
		if err != nil {
			return nil, err
		}
		data = b
	case strings.HasPrefix(name, "marker-") && strings.HasSuffix(name, ".png"):
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "marker-"), ".png"))
		if err != nil {
			return nil, fmt.Errorf("assets: bad marker name %q", name)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, Marker(int64(n))); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	default:
		return nil, fmt.Errorf("assets: unknown builtin %q", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Marker renders a printable high-texture marker. Different seeds give
// markers that do not match each other.
func Marker(seed int64) *image.RGBA {
	const w, h = 480, 360
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 235, 235, 235, 255
	}
	rng := rand.New(rand.NewSource(seed))
	for n := 0; n < 140; n++ {
		x0, y0 := rng.Intn(w-24), rng.Intn(h-24)
		x1, y1 := x0+10+rng.Intn(70), y0+10+rng.Intn(70)
		c := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
		for y := y0; y < min(y1, h); y++ {
			for x := x0; x < min(x1, w); x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	// solid frame helps when printing
	for x := 0; x < w; x++ {
		for t := 0; t < 8; t++ {
			img.SetRGBA(x, t, color.RGBA{A: 255})
			img.SetRGBA(x, h-1-t, color.RGBA{A: 255})
		}
	}
	for y := 0; y < h; y++ {
		for t := 0; t < 8; t++ {
			img.SetRGBA(t, y, color.RGBA{A: 255})
			img.SetRGBA(w-1-t, y, color.RGBA{A: 255})
		}
	}
	return img
}

// CubeGLB encodes a unit cube as a binary glTF document.
func CubeGLB() ([]byte, error) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	})
	idx := modeler.WriteIndices(doc, []uint16{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 1, 5, 0, 5, 4, // bottom
		3, 7, 6, 3, 6, 2, // top
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
	})
	doc.Meshes = []*gltf.Mesh{{
		Name: "cube",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("assets: encode cube: %w", err)
	}
	return buf.Bytes(), nil
}
