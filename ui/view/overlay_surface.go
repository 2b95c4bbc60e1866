package view

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/marker-lens-go/domain/overlay"
	"github.com/soocke/marker-lens-go/ui/images"
	"github.com/soocke/marker-lens-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// OverlaySurface renders overlay elements into a framed area of the main
// window. Pages are handed to open (typically the system browser) and
// represented by a label until closed.
type OverlaySurface struct {
	frame  *FrameWidget
	open   func(url string) error
	logger *slog.Logger
}

var _ overlay.Surface = (*OverlaySurface)(nil)

// NewOverlaySurface grids the overlay frame at row.
func NewOverlaySurface(row int, open func(url string) error, logger *slog.Logger) *OverlaySurface {
	f := Frame(Borderwidth(1), Relief("groove"))
	Grid(f, Row(row), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return &OverlaySurface{frame: f, open: open, logger: logger}
}

func (s *OverlaySurface) ShowLabel(text string) (overlay.Element, error) {
	lbl := Label(Txt(text), Foreground(theme.ColorAccent), Background(theme.ColorSurface))
	Pack(lbl, In(s.frame), Padx("1m"), Pady("1m"))
	return &labelElement{lbl: lbl}, nil
}

func (s *OverlaySurface) ShowImage(img image.Image) (overlay.ImageElement, error) {
	if img == nil {
		return nil, fmt.Errorf("view: nil overlay image")
	}
	photo := NewPhoto(Data(images.EncodePNG(img)))
	lbl := Label(Image(photo), Borderwidth(0))
	Pack(lbl, In(s.frame), Padx("1m"), Pady("1m"))
	return &imageElement{labelElement: labelElement{lbl: lbl}, photo: photo}, nil
}

func (s *OverlaySurface) OpenPage(url string) (overlay.Element, error) {
	if s.open != nil {
		if err := s.open(url); err != nil {
			return nil, fmt.Errorf("view: open %s: %w", url, err)
		}
	}
	if s.logger != nil {
		s.logger.Info("overlay page opened", "url", url)
	}
	return s.ShowLabel("🔗 " + url + "  (Close Link to continue scanning overlays)")
}

type labelElement struct{ lbl *LabelWidget }

func (e *labelElement) Close() error {
	if e.lbl != nil {
		Destroy(e.lbl)
		e.lbl = nil
	}
	return nil
}

type imageElement struct {
	labelElement
	photo *Img
}

func (e *imageElement) Update(img image.Image) error {
	if e.lbl == nil {
		return fmt.Errorf("view: update on closed element")
	}
	photo := NewPhoto(Data(images.EncodePNG(img)))
	e.lbl.Configure(Image(photo))
	if e.photo != nil {
		e.photo.Delete()
	}
	e.photo = photo
	return nil
}

func (e *imageElement) Close() error {
	err := e.labelElement.Close()
	if e.photo != nil {
		e.photo.Delete()
		e.photo = nil
	}
	return err
}
