package view

import (
	"image"
	"sync"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	maxPreviewW = 480
	maxPreviewH = 360
)

// Preview shows the live camera stream while one is attached and the current
// still image otherwise. Attach and Detach may be called from any goroutine;
// Refresh and ShowStill run on the Tk thread.
type Preview struct {
	label *LabelWidget
	photo *Img // last Tk photo, deleted before replacement

	mu     sync.Mutex
	stream camera.Stream
	dirty  bool

	still image.Image
}

var _ camera.PreviewSink = (*Preview)(nil)

// NewPreview creates the preview label and grids it at row spanning cols columns.
func NewPreview(row, cols int) *Preview {
	p := &Preview{}
	p.photo = NewPhoto(Data(images.EncodePNG(placeholder())))
	p.label = Label(Image(p.photo), Borderwidth(1), Relief("sunken"))
	Grid(p.label, Row(row), Column(0), Columnspan(cols), Sticky("nsew"), Padx("0.4m"), Pady("0.4m"))
	return p
}

func placeholder() image.Image {
	return image.NewRGBA(image.Rect(0, 0, maxPreviewW, maxPreviewH))
}

func (p *Preview) Attach(s camera.Stream) {
	p.mu.Lock()
	p.stream = s
	p.mu.Unlock()
}

func (p *Preview) Detach() {
	p.mu.Lock()
	p.stream = nil
	p.dirty = true
	p.mu.Unlock()
}

// ShowStill sets the image displayed while no stream is attached. nil shows
// the placeholder.
func (p *Preview) ShowStill(img image.Image) {
	if p == nil {
		return
	}
	p.still = img
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// Refresh pulls the latest frame from the attached stream, or redraws the
// still image after a change.
func (p *Preview) Refresh() {
	if p == nil || p.label == nil {
		return
	}
	p.mu.Lock()
	var frame image.Image
	if p.stream != nil {
		// Held across Frame so a concurrent Detach cannot release the stream mid-read.
		frame, _ = p.stream.Frame()
	} else if p.dirty {
		frame = p.still
		if frame == nil {
			frame = placeholder()
		}
	}
	p.dirty = false
	p.mu.Unlock()

	if frame == nil {
		return
	}
	p.show(images.ScaleToFit(frame, maxPreviewW, maxPreviewH))
}

func (p *Preview) show(img image.Image) {
	if p.photo != nil {
		p.photo.Delete()
	}
	p.photo = NewPhoto(Data(images.EncodePNG(img)))
	p.label.Configure(Image(p.photo))
}
