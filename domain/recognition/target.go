// Package recognition holds the registered marker signatures and matches
// camera frames against them.
package recognition

import (
	"fmt"
	"strings"

	"github.com/soocke/marker-lens-go/domain/vision"
)

// ContentType selects the overlay variant shown for a target.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	Content3D    ContentType = "3d"
	ContentLink  ContentType = "link"
)

// ParseContentType accepts the canonical names case-insensitively plus a few
// aliases found in imported target sheets.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "mp4":
		return ContentVideo, nil
	case "audio", "mp3", "sound":
		return ContentAudio, nil
	case "3d", "model", "glb", "gltf":
		return Content3D, nil
	case "link", "url", "page":
		return ContentLink, nil
	}
	return "", fmt.Errorf("recognition: unknown content type %q", s)
}

// NeedsDownload reports whether the payload has to be fetched before the
// overlay can be constructed. Links are opened by reference.
func (c ContentType) NeedsDownload() bool { return c != ContentLink }

// Content describes what a target shows once recognized.
type Content struct {
	Type    ContentType
	Locator string
}

// Target is a registered marker. Width and Height are the dimensions of the
// bounded reference image the signature was extracted from; the transform of
// a detection maps that plane into the frame.
type Target struct {
	ID      string
	Content Content
	Width   int
	Height  int

	signature vision.Features
}

// Features returns the number of features in the target's signature.
func (t *Target) Features() int {
	if t == nil || t.signature == nil {
		return 0
	}
	return t.signature.Len()
}

// Corners returns the reference plane corners in clockwise order starting at
// the origin.
func (t *Target) Corners() [4]vision.Point {
	w, h := float64(t.Width), float64(t.Height)
	return [4]vision.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}
