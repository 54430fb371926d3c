package view

import (
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/soocke/leafscan-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// RegionOverlay is a translucent window the user drags over the part of the
// screen the screen camera should read, e.g. a photo viewer showing a leaf.
type RegionOverlay interface {
	OpenOrFocus()
	Clear()
	// ActiveRect returns the confirmed region or nil. Safe from any goroutine.
	ActiveRect() *image.Rectangle
}

type regionOverlay struct {
	logger  *slog.Logger
	cfg     *config.Config
	cfgPath string
	region  atomic.Value // image.Rectangle
	win     *ToplevelWidget
}

func NewRegionOverlay(cfg *config.Config, cfgPath string, logger *slog.Logger) RegionOverlay {
	v := &regionOverlay{logger: logger, cfg: cfg, cfgPath: cfgPath}
	if cfg != nil {
		if r := cfg.Camera.Region(); r != nil {
			v.region.Store(*r)
		}
	}
	return v
}

const overlayKey = "#2f7d32"

func (v *regionOverlay) OpenOrFocus() {
	if v.win != nil {
		WmGeometry(v.win.Window)
		return
	}
	win := App.Toplevel(Borderwidth(2), Background(overlayKey))
	win.WmTitle("Scan Region")
	v.win = win
	w, h, x, y := 640, 480, 200, 150
	if r := v.ActiveRect(); r != nil {
		w, h, x, y = r.Dx(), r.Dy(), r.Min.X, r.Min.Y
	}
	WmGeometry(win.Window, fmt.Sprintf("%dx%d+%d+%d", w, h, x, y))
	WmAttributes(win.Window, "-topmost", 1)
	WmAttributes(win.Window, "-alpha", 0.35)
	GridRowConfigure(win.Window, 0, Weight(1))
	GridColumnConfigure(win.Window, 0, Weight(1))
	center := win.Frame(Background(overlayKey))
	Grid(center, Row(0), Column(0), Sticky("nsew"))
	controls := win.Frame()
	Grid(controls, Row(1), Column(0), Sticky("we"))
	confirm := win.Button(Txt("Use Region [Enter]"), Command(v.confirm))
	Grid(confirm, In(controls), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	cancel := win.Button(Txt("Cancel [Esc]"), Command(v.cancel))
	Grid(cancel, In(controls), Row(0), Column(1), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	clear := win.Button(Txt("Full Screen"), Command(func() { v.Clear(); v.cancel() }))
	Grid(clear, In(controls), Row(0), Column(2), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	Bind(win, "<Return>", Command(v.confirm))
	Bind(win, "<Escape>", Command(v.cancel))
}

func (v *regionOverlay) Clear() {
	v.region.Store(image.Rectangle{})
	v.persist(image.Rectangle{})
}

func (v *regionOverlay) confirm() {
	if v.win == nil {
		return
	}
	if rect, ok := parseGeometry(WmGeometry(v.win.Window)); ok {
		v.region.Store(rect)
		v.persist(rect)
		if v.logger != nil {
			v.logger.Info("scan region set", "rect", rect.String())
		}
	}
	v.cancel()
}

func (v *regionOverlay) persist(r image.Rectangle) {
	if v.cfg == nil {
		return
	}
	v.cfg.Camera.RegionX, v.cfg.Camera.RegionY = r.Min.X, r.Min.Y
	v.cfg.Camera.RegionW, v.cfg.Camera.RegionH = r.Dx(), r.Dy()
	if err := v.cfg.Save(v.cfgPath); err != nil && v.logger != nil {
		v.logger.Error("config save failed", "error", err)
	}
}

func (v *regionOverlay) cancel() {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
}

func (v *regionOverlay) ActiveRect() *image.Rectangle {
	r, ok := v.region.Load().(image.Rectangle)
	if !ok || r.Empty() {
		return nil
	}
	return &r
}

// geomRe matches Tk geometry strings: WIDTHxHEIGHT+X+Y.
var geomRe = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)

func parseGeometry(g string) (image.Rectangle, bool) {
	m := geomRe.FindStringSubmatch(strings.TrimSpace(g))
	if len(m) != 5 {
		return image.Rectangle{}, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}
