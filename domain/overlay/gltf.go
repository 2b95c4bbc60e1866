package overlay

import (
	"context"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// maxSceneTriangles bounds the software renderer's per-frame work.
const maxSceneTriangles = 20000

// GLTFLoader reads .gltf and .glb files. Only triangle primitives are used;
// node transforms are ignored and the geometry is normalized by NewScene.
type GLTFLoader struct{}

func (GLTFLoader) Load(ctx context.Context, path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: open scene: %w", err)
	}
	var tris [][3]Vec3
	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("overlay: read positions: %w", err)
			}
			var idx []uint32
			if prim.Indices != nil {
				idx, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return nil, fmt.Errorf("overlay: read indices: %w", err)
				}
			} else {
				idx = make([]uint32, len(pos))
				for i := range idx {
					idx[i] = uint32(i)
				}
			}
			for i := 0; i+2 < len(idx) && len(tris) < maxSceneTriangles; i += 3 {
				a, b, c := idx[i], idx[i+1], idx[i+2]
				if int(a) >= len(pos) || int(b) >= len(pos) || int(c) >= len(pos) {
					return nil, fmt.Errorf("overlay: index out of range in mesh %q", mesh.Name)
				}
				tris = append(tris, [3]Vec3{pos[a], pos[b], pos[c]})
			}
		}
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("overlay: scene %s has no triangles", path)
	}
	return NewScene(tris), nil
}
