package view

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/leafscan-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel is the settings form. Changes are validated, written back into
// the shared *config.Config and saved; camera and API settings apply on the
// next launch.
type ConfigPanel interface {
	Build(parent *FrameWidget, startRow int) (endRow int)
	SetEditable(enabled bool)
	ApplyChanges()
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	applyBtn *TButtonWidget
	widgets  map[string]*TextWidget
	order    []string
}

func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(parent *FrameWidget, startRow int) (row int) {
	c := v.cfg
	row = startRow
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, In(parent), Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(24))
		Grid(w, In(parent), Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		v.order = append(v.order, id)
		row++
	}
	makeRow("backend", "Camera (screen/opencv/none)", c.Camera.Backend)
	makeRow("index", "OpenCV Device Index", strconv.Itoa(c.Camera.Index))
	makeRow("node", "Video Node (e.g. /dev/video0)", c.Camera.Node)
	makeRow("width", "Width", strconv.Itoa(c.Camera.Width))
	makeRow("height", "Height", strconv.Itoa(c.Camera.Height))
	makeRow("fps", "Frame Rate", strconv.Itoa(c.Camera.FPS))
	makeRow("handheld", "Handheld (true/false)", strconv.FormatBool(c.Camera.Handheld))
	makeRow("apiURL", "Prediction API URL", c.API.BaseURL)
	makeRow("apiTimeout", "API Timeout Seconds", strconv.Itoa(c.API.TimeoutSeconds))
	v.applyBtn = TButton(Txt("Save Settings"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, In(parent), Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, id := range v.order {
		if w := v.widgets[id]; w != nil {
			w.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

func (v *configPanel) text(id string) (string, bool) {
	w := v.widgets[id]
	if w == nil {
		return "", false
	}
	return strings.TrimSpace(strings.Join(w.Get("1.0", END), "")), true
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	cfg := *v.cfg
	assignInt := func(id string, dst *int) {
		if s, ok := v.text(id); ok {
			if i, err := strconv.Atoi(s); err == nil {
				*dst = i
			}
		}
	}
	assignString := func(id string, dst *string, allowEmpty bool) {
		if s, ok := v.text(id); ok && (s != "" || allowEmpty) {
			*dst = s
		}
	}
	assignString("backend", &cfg.Camera.Backend, false)
	assignInt("index", &cfg.Camera.Index)
	assignString("node", &cfg.Camera.Node, true)
	assignInt("width", &cfg.Camera.Width)
	assignInt("height", &cfg.Camera.Height)
	assignInt("fps", &cfg.Camera.FPS)
	if s, ok := v.text("handheld"); ok {
		if b, ok := parseBoolLoose(s); ok {
			cfg.Camera.Handheld = b
		}
	}
	assignString("apiURL", &cfg.API.BaseURL, false)
	assignInt("apiTimeout", &cfg.API.TimeoutSeconds)
	if err := cfg.Validate(); err != nil {
		if v.logger != nil {
			v.logger.Warn("settings rejected", "error", err)
		}
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
		return
	}
	if v.logger != nil {
		v.logger.Info("config saved", "path", v.cfgPath)
	}
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
