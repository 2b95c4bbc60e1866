package view

import (
	"image"

	"github.com/soocke/marker-lens-go/domain/vision"
	"github.com/soocke/marker-lens-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// CapturePreview shows the scanned frame with the recognized marker outlined.
type CapturePreview interface {
	UpdateCapture(img image.Image, outline *[4]vision.Point)
	Reset()
}

type capturePreview struct {
	label *LabelWidget
	// photo is the current Tk image; it is deleted when replaced so that
	// off-screen pixel data does not accumulate.
	photo *Img
}

const (
	maxPreviewW = 480
	maxPreviewH = 270
	outlineW    = 3
)

// NewCapturePreview creates the preview label spanning the given row.
func NewCapturePreview(row int) CapturePreview {
	photo := NewPhoto(Data(placeholderPNG()))
	lbl := Label(Image(photo), Borderwidth(1), Relief("sunken"))
	Grid(lbl, Row(row), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return &capturePreview{label: lbl, photo: photo}
}

func placeholderPNG() []byte {
	return images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 240, 135)))
}

func (v *capturePreview) UpdateCapture(img image.Image, outline *[4]vision.Point) {
	if v.label == nil || img == nil {
		return
	}
	scaled, factor := images.ScaleToFit(img, maxPreviewW, maxPreviewH)
	if outline != nil {
		scaled = images.DrawOutline(scaled, *outline, factor, outlineW, images.OutlineColor)
	}
	v.replace(images.EncodePNG(scaled))
}

func (v *capturePreview) Reset() {
	if v.label != nil {
		v.replace(placeholderPNG())
	}
}

func (v *capturePreview) replace(png []byte) {
	photo := NewPhoto(Data(png))
	v.label.Configure(Image(photo))
	if v.photo != nil {
		v.photo.Delete()
	}
	v.photo = photo
}
