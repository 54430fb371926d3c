package presenter

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/camera/cameratest"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
	"github.com/soocke/leafscan-go/store"
	"github.com/soocke/leafscan-go/ui/images"
	"github.com/soocke/leafscan-go/ui/model"
)

func syncRun(f func()) { f() }

type mockView struct {
	status    []string
	artifacts []*camera.Artifact
	results   []model.Result
	labels    []string
	controls  []Controls
	live      time.Duration
}

func (v *mockView) SetStatus(s string)               { v.status = append(v.status, s) }
func (v *mockView) ShowArtifact(a *camera.Artifact)  { v.artifacts = append(v.artifacts, a) }
func (v *mockView) ShowResult(r model.Result)        { v.results = append(v.results, r) }
func (v *mockView) SetCameraState(s string)          { v.labels = append(v.labels, s) }
func (v *mockView) SetControls(c Controls)           { v.controls = append(v.controls, c) }
func (v *mockView) SetLiveTime(cur, _ time.Duration) { v.live = cur }

func (v *mockView) lastStatus() string {
	if len(v.status) == 0 {
		return ""
	}
	return v.status[len(v.status)-1]
}

type mockDiagnoser struct {
	predictErr error
	recErr     error
	predicted  int
}

func (d *mockDiagnoser) Predict(_ context.Context, a *camera.Artifact) (diagnosis.Prediction, error) {
	d.predicted++
	if d.predictErr != nil {
		return diagnosis.Prediction{}, d.predictErr
	}
	return diagnosis.Prediction{Disease: "Blast", Confidence: 91.5}, nil
}

func (d *mockDiagnoser) Recommend(_ context.Context, disease string) (fertilizer.Recommendation, error) {
	if d.recErr != nil {
		return fertilizer.Recommendation{}, d.recErr
	}
	r, _ := fertilizer.Default().Recommend(disease)
	return r, nil
}

type mockHistory struct {
	scans      []store.Scan
	fertilizer map[string]string
}

func (h *mockHistory) Record(_ context.Context, sc store.Scan) error {
	h.scans = append(h.scans, sc)
	return nil
}

func (h *mockHistory) SetFertilizer(_ context.Context, id, f string) error {
	if h.fertilizer == nil {
		h.fertilizer = map[string]string{}
	}
	h.fertilizer[id] = f
	return nil
}

type harness struct {
	dev     *cameratest.Device
	session *camera.Session
	handoff *camera.Handoff
	model   *model.ScannerModel
	view    *mockView
	diag    *mockDiagnoser
	history *mockHistory
	scanner *ScannerPresenter
	results *ResultsPresenter
	state   *StatePresenter
	loop    *Loop
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dev:     &cameratest.Device{Frame: cameratest.Solid(64, 48, color.RGBA{G: 200, A: 255})},
		handoff: camera.NewHandoff(),
		model:   model.NewScannerModel(),
		view:    &mockView{},
		diag:    &mockDiagnoser{},
		history: &mockHistory{},
	}
	h.session = camera.NewSession(camera.Options{Device: h.dev})
	t.Cleanup(h.session.Close)
	ctx := context.Background()
	h.scanner = NewScannerPresenter(ctx, h.session, h.handoff, h.model, h.view, nil)
	h.scanner.SetRunner(syncRun)
	h.results = NewResultsPresenter(ctx, h.handoff, h.diag, h.history, h.model, h.view, nil)
	h.results.SetRunner(syncRun)
	h.state = NewStatePresenter(h.model, h.view)
	h.session.Subscribe(h.state.OnSnapshot)
	h.loop = NewLoop(h.scanner, h.results, h.state, nil, nil)
	return h
}

func TestScannerPresenter_ShutterStartsThenCaptures(t *testing.T) {
	h := newHarness(t)

	h.scanner.Shutter()
	h.loop.Tick()
	if h.dev.Live() != 1 {
		t.Fatalf("first shutter should start the camera; live=%d", h.dev.Live())
	}
	if !strings.Contains(h.view.lastStatus(), "Camera started") {
		t.Fatalf("unexpected status %q", h.view.lastStatus())
	}
	if c := h.view.controls[len(h.view.controls)-1]; c.Start || !c.Stop || !c.Shutter || c.Analyze {
		t.Fatalf("unexpected controls while active: %+v", c)
	}

	h.scanner.Shutter()
	h.loop.Tick()
	if h.dev.Live() != 0 {
		t.Fatalf("capture should release the camera; live=%d", h.dev.Live())
	}
	if len(h.view.artifacts) != 1 || h.view.artifacts[0] == nil || h.view.artifacts[0].Origin != camera.OriginCaptured {
		t.Fatalf("expected one captured artifact shown, got %v", h.view.artifacts)
	}
	if c := h.view.controls[len(h.view.controls)-1]; !c.Analyze || !c.Start {
		t.Fatalf("analyze should be enabled after capture: %+v", c)
	}
}

func TestScannerPresenter_StartFailures(t *testing.T) {
	h := newHarness(t)
	h.dev.SetOpenErr(camera.ErrPermissionDenied)

	h.scanner.Start()
	h.loop.Tick()
	if !strings.Contains(h.view.lastStatus(), "denied") {
		t.Fatalf("expected denial message, got %q", h.view.lastStatus())
	}
	if got := h.model.Snapshot().Permission; got != camera.PermissionDenied {
		t.Fatalf("permission = %v, want denied", got)
	}

	h.dev.SetOpenErr(errors.New("no such device"))
	h.scanner.Shutter()
	h.loop.Tick()
	if !strings.Contains(h.view.lastStatus(), "No camera") {
		t.Fatalf("expected unavailable message, got %q", h.view.lastStatus())
	}
	if h.dev.Live() != 0 {
		t.Fatalf("failed starts must not leak streams")
	}
}

func TestScannerPresenter_ChooseFile(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	png := filepath.Join(dir, "leaf.png")
	if err := os.WriteFile(png, images.EncodePNG(cameratest.Solid(8, 8, color.White)), 0o644); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	h.scanner.Start()
	h.loop.Tick()
	h.scanner.ChooseFile(png)
	h.loop.Tick()
	cur := h.session.Current()
	if cur == nil || cur.MIMEType != "image/png" || cur.Origin != camera.OriginSelected {
		t.Fatalf("unexpected current artifact %v", cur)
	}
	if h.dev.Live() != 0 {
		t.Fatalf("selecting a file should stop the camera")
	}

	h.scanner.ChooseFile(txt)
	h.loop.Tick()
	if !strings.Contains(h.view.lastStatus(), "image file") {
		t.Fatalf("expected invalid type message, got %q", h.view.lastStatus())
	}
	if h.session.Current() != cur {
		t.Fatalf("rejected file must not replace the current artifact")
	}

	h.scanner.ChooseFile("")
	h.scanner.Discard()
	if h.session.Current() != nil || h.view.artifacts[len(h.view.artifacts)-1] != nil {
		t.Fatalf("discard should clear the artifact")
	}
}

func TestResultsPresenter_AnalyzeRecordsHistory(t *testing.T) {
	h := newHarness(t)

	h.scanner.Analyze()
	if !strings.Contains(h.view.lastStatus(), "first") {
		t.Fatalf("analyze without image should prompt, got %q", h.view.lastStatus())
	}

	h.scanner.Start()
	h.loop.Tick()
	h.scanner.Shutter()
	h.loop.Tick()
	h.scanner.Analyze()
	if !h.model.Busy() {
		t.Fatalf("model should be busy while analysis is pending")
	}
	h.scanner.Analyze()
	if h.diag.predicted != 0 {
		t.Fatalf("prediction should run on tick")
	}

	h.loop.Tick()
	if h.model.Busy() || h.diag.predicted != 1 {
		t.Fatalf("expected one finished prediction; busy=%v predicted=%d", h.model.Busy(), h.diag.predicted)
	}
	if len(h.view.results) != 1 || h.view.results[0].Prediction.Disease != "Blast" {
		t.Fatalf("unexpected results %v", h.view.results)
	}
	if h.view.results[0].Fertilizer.Fertilizer != "Tricyclazole" {
		t.Fatalf("unexpected fertilizer %q", h.view.results[0].Fertilizer.Fertilizer)
	}
	if len(h.history.scans) != 1 {
		t.Fatalf("expected one recorded scan, got %d", len(h.history.scans))
	}
	if got := h.history.fertilizer[h.history.scans[0].ID]; got != "Tricyclazole" {
		t.Fatalf("fertilizer not recorded: %q", got)
	}
	if _, ok := h.handoff.TryTake(); ok {
		t.Fatalf("hand-off should be consumed exactly once")
	}
}

func TestResultsPresenter_Failures(t *testing.T) {
	h := newHarness(t)
	if _, err := h.session.SelectFile(camera.File{Name: "a.png", MIMEType: "image/png", Data: []byte{1}}); err != nil {
		t.Fatal(err)
	}

	h.diag.recErr = errors.New("recommendation service down")
	h.scanner.Analyze()
	h.loop.Tick()
	if len(h.view.results) != 1 || h.view.results[0].FertilizerErr == nil {
		t.Fatalf("fertilizer error should be carried on the result")
	}
	if len(h.history.fertilizer) != 0 {
		t.Fatalf("no fertilizer should be recorded on failure")
	}

	h.diag.predictErr = &diagnosis.UpstreamError{Status: 500, Message: "model crashed"}
	h.scanner.Analyze()
	h.loop.Tick()
	if len(h.view.results) != 1 || h.model.Busy() {
		t.Fatalf("failed prediction must not produce a result; busy=%v", h.model.Busy())
	}
	if !strings.HasPrefix(h.view.lastStatus(), "Analysis failed") {
		t.Fatalf("unexpected status %q", h.view.lastStatus())
	}
}

func TestStatePresenter_CoalescesSnapshots(t *testing.T) {
	m := model.NewScannerModel()
	v := &mockView{}
	p := NewStatePresenter(m, v)
	base := time.Unix(0, 0)

	p.OnSnapshot(camera.Snapshot{State: camera.StateStarting})
	p.OnSnapshot(camera.Snapshot{State: camera.StateActive, Permission: camera.PermissionGranted})
	p.Tick(base)
	if len(v.labels) != 1 || v.labels[0] != "Camera: active (front) | permission: granted" {
		t.Fatalf("unexpected labels %v", v.labels)
	}
	p.Tick(base.Add(2 * time.Second))
	if len(v.labels) != 1 || len(v.controls) != 1 {
		t.Fatalf("unchanged state should not repaint: labels=%d controls=%d", len(v.labels), len(v.controls))
	}
	if v.live != 2*time.Second {
		t.Fatalf("live time = %v, want 2s", v.live)
	}

	var nilP *StatePresenter
	nilP.OnSnapshot(camera.Snapshot{})
	nilP.Tick(base)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	noext := filepath.Join(dir, "photo")
	if err := os.WriteFile(noext, images.EncodePNG(cameratest.Solid(2, 2, color.Black)), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(noext)
	if err != nil || f.MIMEType != "image/png" || f.Name != "photo" || f.Size != int64(len(f.Data)) {
		t.Fatalf("sniffed load failed: %+v err=%v", f, err)
	}

	big := filepath.Join(dir, "big.jpg")
	if err := os.WriteFile(big, make([]byte, camera.MaxFileSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err = LoadFile(big)
	if err != nil || f.Data != nil || !errors.Is(f.Validate(), camera.ErrFileTooLarge) {
		t.Fatalf("oversized file should be reported without reading: err=%v", err)
	}

	if _, err := LoadFile(dir); err == nil {
		t.Fatalf("directories should be rejected")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("missing files should fail")
	}
}

func TestScannerPresenter_ShutterWhileStarting(t *testing.T) {
	h := newHarness(t)
	h.dev.Gate = make(chan struct{})
	h.dev.Entered = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() { errc <- h.session.Start(context.Background()) }()
	<-h.dev.Entered

	h.scanner.Shutter()
	h.scanner.Tick(time.Now())
	if !strings.Contains(h.view.lastStatus(), "still starting") {
		t.Fatalf("unexpected status %q", h.view.lastStatus())
	}
	close(h.dev.Gate)
	if err := <-errc; err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.dev.Opens() != 1 {
		t.Fatalf("shutter during start must not open the device again; opens=%d", h.dev.Opens())
	}
}

func TestStartedOnly(t *testing.T) {
	if !startedOnly(camera.ErrNotActive) {
		t.Fatalf("bare ErrNotActive means the camera was started")
	}
	if startedOnly(errors.Join(camera.ErrNotActive, camera.ErrPermissionDenied)) {
		t.Fatalf("a joined start failure is not a successful start")
	}
	if startedOnly(nil) || startedOnly(camera.ErrCameraUnavailable) {
		t.Fatalf("unrelated errors are not a start")
	}
}

func TestResultsPresenter_NoDiagnoserClearsBusy(t *testing.T) {
	h := newHarness(t)
	h.results = NewResultsPresenter(context.Background(), h.handoff, nil, nil, h.model, h.view, nil)
	h.loop = NewLoop(h.scanner, h.results, h.state, nil, nil)
	if _, err := h.session.SelectFile(camera.File{Name: "a.png", MIMEType: "image/png", Data: []byte{1}}); err != nil {
		t.Fatal(err)
	}

	h.scanner.Analyze()
	if !h.model.Busy() {
		t.Fatalf("analyze should mark the model busy")
	}
	h.loop.Tick()
	if h.model.Busy() {
		t.Fatalf("busy must clear when no diagnosis service exists")
	}
	if !strings.Contains(h.view.lastStatus(), "unavailable") {
		t.Fatalf("unexpected status %q", h.view.lastStatus())
	}
	if _, ok := h.handoff.TryTake(); ok {
		t.Fatalf("hand-off should be consumed")
	}
	if c := h.view.controls[len(h.view.controls)-1]; !c.Analyze || !c.Discard {
		t.Fatalf("analyze and discard should be enabled again: %+v", c)
	}
}
