package presenter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/ui/model"
)

// CameraSession narrows camera.Session to the scanner actions.
type CameraSession interface {
	CheckPermission(ctx context.Context) camera.Permission
	Start(ctx context.Context) error
	Stop()
	CaptureOrStart(ctx context.Context) (*camera.Artifact, error)
	SelectFile(f camera.File) (*camera.Artifact, error)
	Discard()
	Current() *camera.Artifact
	Snapshot() camera.Snapshot
}

var _ CameraSession = (*camera.Session)(nil)

// HandoffSink accepts the artifact chosen for analysis.
type HandoffSink interface {
	Put(a *camera.Artifact) error
}

// ScannerView is updated by scanner actions.
type ScannerView interface {
	SetStatus(text string)
	ShowArtifact(a *camera.Artifact)
}

// ScannerPresenter turns button presses into session calls. Blocking calls
// run on the runner; their view updates are applied on Tick.
type ScannerPresenter struct {
	ctx     context.Context
	session CameraSession
	handoff HandoffSink
	model   *model.ScannerModel
	view    ScannerView
	logger  *slog.Logger
	run     func(func())
	queue   uiQueue
}

func NewScannerPresenter(ctx context.Context, session CameraSession, handoff HandoffSink, m *model.ScannerModel, view ScannerView, logger *slog.Logger) *ScannerPresenter {
	return &ScannerPresenter{ctx: ctx, session: session, handoff: handoff, model: m, view: view, logger: logger, run: goRunner}
}

// SetRunner replaces the goroutine runner. Tests pass a synchronous one.
func (p *ScannerPresenter) SetRunner(run func(func())) {
	if p != nil && run != nil {
		p.run = run
	}
}

func (p *ScannerPresenter) ready() bool {
	return p != nil && p.session != nil && p.view != nil && p.model != nil
}

// CheckPermission probes camera access and reports a denial.
func (p *ScannerPresenter) CheckPermission() {
	if !p.ready() {
		return
	}
	p.run(func() {
		if p.session.CheckPermission(p.ctx) == camera.PermissionDenied {
			p.status(userMessage(camera.ErrPermissionDenied))
		}
	})
}

// Start turns the camera on.
func (p *ScannerPresenter) Start() {
	if !p.ready() {
		return
	}
	p.status("Starting camera...")
	p.run(func() {
		if err := p.session.Start(p.ctx); err != nil {
			p.fail("start", err)
			return
		}
		p.status("Camera ready. Frame the leaf and press Capture.")
	})
}

// Shutter captures when the camera is live and starts it otherwise.
func (p *ScannerPresenter) Shutter() {
	if !p.ready() {
		return
	}
	p.run(func() {
		if p.session.Snapshot().Loading() {
			p.status("The camera is still starting.")
			return
		}
		art, err := p.session.CaptureOrStart(p.ctx)
		switch {
		case err == nil:
			p.queue.post(func() {
				p.view.ShowArtifact(art)
				p.setStatus("Captured " + art.Name + ". Press Analyze to diagnose.")
			})
		case startedOnly(err):
			p.status("Camera started. Press Capture again to take the photo.")
		default:
			p.fail("shutter", err)
		}
	})
}

// Stop turns the camera off.
func (p *ScannerPresenter) Stop() {
	if !p.ready() {
		return
	}
	p.session.Stop()
	p.setStatus("Camera stopped.")
}

// ChooseFile loads the image at path as the current artifact. An empty path
// (dialog cancelled) is ignored.
func (p *ScannerPresenter) ChooseFile(path string) {
	if !p.ready() || path == "" {
		return
	}
	p.run(func() {
		f, err := LoadFile(path)
		if err != nil {
			p.fail("load file", err)
			return
		}
		art, err := p.session.SelectFile(f)
		if err != nil {
			p.fail("select file", err)
			return
		}
		p.queue.post(func() {
			p.view.ShowArtifact(art)
			p.setStatus("Selected " + art.String() + ".")
		})
	})
}

// Discard clears the current image.
func (p *ScannerPresenter) Discard() {
	if !p.ready() {
		return
	}
	p.session.Discard()
	p.view.ShowArtifact(nil)
	p.setStatus("Image discarded.")
}

// Analyze hands the current image to the results side.
func (p *ScannerPresenter) Analyze() {
	if !p.ready() || p.handoff == nil {
		return
	}
	if p.model.Busy() {
		return
	}
	art := p.session.Current()
	if art == nil {
		p.setStatus("Capture a photo or choose a file first.")
		return
	}
	if err := p.handoff.Put(art); err != nil {
		p.setStatus("An analysis is already pending.")
		return
	}
	p.model.SetBusy(true)
	p.setStatus("Analyzing " + art.Name + "...")
}

// Tick applies view updates posted by finished actions.
func (p *ScannerPresenter) Tick(time.Time) {
	if p == nil {
		return
	}
	p.queue.drain()
}

func (p *ScannerPresenter) setStatus(s string) {
	p.model.SetStatus(s)
	p.view.SetStatus(s)
}

// status posts a status line from a worker.
func (p *ScannerPresenter) status(s string) {
	p.queue.post(func() { p.setStatus(s) })
}

func (p *ScannerPresenter) fail(op string, err error) {
	if p.logger != nil {
		p.logger.Warn("scanner action failed", "op", op, "error", err)
	}
	p.status(userMessage(err))
}

// startedOnly reports whether a shutter press found the camera off and started
// it. A failed start comes back joined with the start error.
func startedOnly(err error) bool {
	if !errors.Is(err, camera.ErrNotActive) {
		return false
	}
	var joined interface{ Unwrap() []error }
	return !errors.As(err, &joined)
}

// userMessage renders session errors for the status line.
func userMessage(err error) string {
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		return "Camera access was denied. You can still choose an image file."
	case errors.Is(err, camera.ErrCameraUnavailable):
		return "No camera is available. Choose an image file instead."
	case errors.Is(err, camera.ErrStreamStartFailed):
		return "The camera could not start streaming. Try again."
	case errors.Is(err, camera.ErrStartAborted):
		return "Camera start cancelled."
	case errors.Is(err, camera.ErrCaptureEncodeFailed):
		return "The photo could not be captured. Try again."
	case errors.Is(err, camera.ErrInvalidFileType):
		return "Please choose an image file."
	case errors.Is(err, camera.ErrEmptyFile):
		return "The chosen file is empty."
	case errors.Is(err, camera.ErrFileTooLarge):
		return "Image is larger than 5 MB. Choose a smaller file."
	case errors.Is(err, camera.ErrNotActive):
		return "The camera is not running."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Error: " + err.Error()
	}
}
