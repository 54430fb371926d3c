package presenter

import (
	"fmt"
	"sync"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/ui/model"
)

// Controls lists which scanner buttons are enabled.
type Controls struct {
	Start   bool
	Shutter bool
	Stop    bool
	Analyze bool
	Discard bool
}

// StateView reflects camera state in the view.
type StateView interface {
	SetCameraState(text string)
	SetControls(c Controls)
	SetLiveTime(current, total time.Duration)
}

// StatePresenter receives session snapshots from any goroutine and reflects
// the latest one on the next Tick.
type StatePresenter struct {
	mu      sync.Mutex
	pending []camera.Snapshot

	model    *model.ScannerModel
	view     StateView
	label    string
	controls Controls
	seeded   bool
}

func NewStatePresenter(m *model.ScannerModel, view StateView) *StatePresenter {
	return &StatePresenter{model: m, view: view}
}

// OnSnapshot queues a snapshot. It has the camera.Listener signature.
func (p *StatePresenter) OnSnapshot(s camera.Snapshot) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, s)
	p.mu.Unlock()
}

// Tick applies the most recent queued snapshot to the model and pushes
// label, controls and live time to the view when they changed.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.model == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	var last *camera.Snapshot
	if n := len(p.pending); n > 0 {
		s := p.pending[n-1]
		last = &s
		p.pending = p.pending[:0]
	}
	p.mu.Unlock()

	if last != nil {
		p.model.ApplySnapshot(*last, now)
	} else {
		p.model.Tick(now)
	}
	snap := p.model.Snapshot()

	if label := stateLabel(snap); !p.seeded || label != p.label {
		p.label = label
		p.view.SetCameraState(label)
	}
	if c := controlsFor(snap, p.model.Busy()); !p.seeded || c != p.controls {
		p.controls = c
		p.view.SetControls(c)
	}
	p.seeded = true
	p.view.SetLiveTime(p.model.Live())
}

func stateLabel(s camera.Snapshot) string {
	return fmt.Sprintf("Camera: %s (%s) | permission: %s", s.State, s.Facing, s.Permission)
}

func controlsFor(s camera.Snapshot, busy bool) Controls {
	has := s.Current != nil
	return Controls{
		Start:   s.State == camera.StateIdle,
		Shutter: s.State != camera.StateStarting,
		Stop:    s.State != camera.StateIdle,
		Analyze: has && !busy,
		Discard: has && !busy,
	}
}
