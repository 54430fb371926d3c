package view

import (
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/config"
	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/ui/images"
	"github.com/soocke/leafscan-go/ui/model"
	"github.com/soocke/leafscan-go/ui/presenter"
	"github.com/soocke/leafscan-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Handlers are the user actions wired to the root view's buttons.
type Handlers struct {
	Start      func()
	Shutter    func()
	Stop       func()
	ChooseFile func(path string)
	Analyze    func()
	Discard    func()
	Region     func()
	Exit       func()
}

// RootView composes the scanner window: camera state, live preview, action
// buttons, settings, status line and the results panel.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Preview     *Preview
	Stats       LiveStats
	ConfigPanel ConfigPanel

	// Widgets
	StateLabel  *TLabelWidget
	StatusLabel *TLabelWidget
	ImageLabel  *LabelWidget
	Headline    *TLabelWidget
	Report      *TextWidget

	startBtn, shutterBtn, stopBtn, analyzeBtn, discardBtn *TButtonWidget
}

var (
	_ presenter.ScannerView = (*RootView)(nil)
	_ presenter.ResultsView = (*RootView)(nil)
	_ presenter.StateView   = (*RootView)(nil)
)

var imageFileTypes = []FileType{
	{TypeName: "Images", Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}},
	{TypeName: "All files", Extensions: []string{"*"}},
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout and binds h to the buttons.
func (rv *RootView) Build(h Handlers) {
	if rv == nil {
		return
	}
	// Row 0: camera state and live time
	header := Frame()
	Grid(header, Row(0), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.StateLabel = TLabel(Txt("Camera: idle"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, In(header), Row(0), Column(0), Sticky("w"), Padx("0.4m"))
	rv.Stats = NewLiveStats(header, 0, 1)

	// Row 1: preview on the left, actions and settings on the right
	rv.Preview = NewPreview(1, 1)
	side := Frame()
	Grid(side, Row(1), Column(1), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	button := func(row int, text, style string, cmd func()) *TButtonWidget {
		opts := []Opt{Txt(text), Command(cmd)}
		if style != "" {
			opts = append(opts, Style(style))
		}
		b := TButton(opts...)
		Grid(b, In(side), Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
		return b
	}
	rv.startBtn = button(0, "Start Camera", "", h.Start)
	rv.shutterBtn = button(1, "Capture", theme.StylePrimaryButton, h.Shutter)
	rv.stopBtn = button(2, "Stop Camera", theme.StyleDangerButton, h.Stop)
	button(3, "Choose File...", "", func() { rv.chooseFile(h.ChooseFile) })
	button(4, "Scan Region...", "", h.Region)
	rv.analyzeBtn = button(5, "Analyze", theme.StylePrimaryButton, h.Analyze)
	rv.discardBtn = button(6, "Discard", "", h.Discard)
	button(7, "Exit", "", h.Exit)

	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	rv.ConfigPanel.Build(side, 8)

	// Row 2: current image and status line
	rv.ImageLabel = Label(Txt("No image selected"), Anchor("w"))
	Grid(rv.ImageLabel, Row(2), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"))
	rv.StatusLabel = TLabel(Txt("Start the camera or choose a photo of a leaf."), Style(theme.StyleStatusLabel))
	Grid(rv.StatusLabel, Row(3), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.2m"))

	// Row 4-5: results
	rv.Headline = TLabel(Txt(""), Style(theme.StyleHealthyLabel))
	Grid(rv.Headline, Row(4), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"))
	rv.Report = Text(Height(14), Width(72), Wrap("word"))
	Grid(rv.Report, Row(5), Column(0), Columnspan(2), Sticky("nsew"), Padx("0.4m"), Pady("0.4m"))
	rv.Report.Configure(State("disabled"))
}

func (rv *RootView) chooseFile(cb func(string)) {
	if cb == nil {
		return
	}
	for _, path := range GetOpenFile(Title("Choose a leaf photo"), Filetypes(imageFileTypes)) {
		if path != "" {
			cb(path)
			return
		}
	}
}

// SetStatus updates the status line.
func (rv *RootView) SetStatus(text string) {
	if rv != nil && rv.StatusLabel != nil {
		rv.StatusLabel.Configure(Txt(text))
	}
}

// ShowArtifact displays a still of a and names it; nil clears both.
func (rv *RootView) ShowArtifact(a *camera.Artifact) {
	if rv == nil || rv.ImageLabel == nil {
		return
	}
	if a == nil {
		rv.ImageLabel.Configure(Txt("No image selected"))
		rv.Preview.ShowStill(nil)
		return
	}
	rv.ImageLabel.Configure(Txt(a.String()))
	img, err := images.DecodeFit(a.Data, maxPreviewW, maxPreviewH)
	if err != nil && rv.logger != nil {
		rv.logger.Warn("preview decode", "artifact", a.ID, "error", err)
	}
	rv.Preview.ShowStill(img)
}

// ShowResult renders an analysis.
func (rv *RootView) ShowResult(r model.Result) {
	if rv == nil || rv.Report == nil {
		return
	}
	rv.Headline.Configure(Txt(r.Headline()), Style(theme.DiagnosisStyle(r.Prediction.Healthy)))
	rv.Report.Configure(State("normal"))
	rv.Report.Delete("1.0", END)
	rv.Report.Insert("1.0", r.Report())
	rv.Report.Configure(State("disabled"))
}

// SetCameraState updates the state label text.
func (rv *RootView) SetCameraState(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// SetControls enables or disables the action buttons. Settings are locked
// while the camera is in use.
func (rv *RootView) SetControls(c presenter.Controls) {
	if rv == nil || rv.startBtn == nil {
		return
	}
	set := func(b *TButtonWidget, on bool) {
		if on {
			b.Configure(State("normal"))
		} else {
			b.Configure(State("disabled"))
		}
	}
	set(rv.startBtn, c.Start)
	set(rv.shutterBtn, c.Shutter)
	set(rv.stopBtn, c.Stop)
	set(rv.analyzeBtn, c.Analyze)
	set(rv.discardBtn, c.Discard)
	if rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(!c.Stop)
	}
}

// SetLiveTime updates the live camera time labels.
func (rv *RootView) SetLiveTime(current, total time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetLive(current, total)
	}
}
