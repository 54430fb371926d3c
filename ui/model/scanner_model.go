package model

import (
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
)

// ScannerModel holds what the scanner window shows: the last session snapshot,
// the status line, the latest result and how long the camera has been live.
// It is owned by the UI thread. The zero value is ready to use.
type ScannerModel struct {
	snap   camera.Snapshot
	status string
	busy   bool

	result    Result
	hasResult bool
	scans     int

	live      bool
	liveStart time.Time
	lastLive  time.Duration
	totalLive time.Duration
}

func NewScannerModel() *ScannerModel { return &ScannerModel{} }

// ApplySnapshot records a session snapshot and tracks live time across
// idle/active transitions.
func (m *ScannerModel) ApplySnapshot(s camera.Snapshot, now time.Time) {
	if m == nil {
		return
	}
	m.snap = s
	m.Tick(now)
}

// Tick advances the live duration while the camera is active.
func (m *ScannerModel) Tick(now time.Time) {
	if m == nil {
		return
	}
	active := m.snap.Active()
	switch {
	case active && !m.live:
		m.live = true
		m.liveStart = now
		m.lastLive = 0
	case active:
		m.lastLive = now.Sub(m.liveStart)
	case m.live:
		m.lastLive = now.Sub(m.liveStart)
		m.totalLive += m.lastLive
		m.live = false
	}
}

func (m *ScannerModel) Snapshot() camera.Snapshot {
	if m == nil {
		return camera.Snapshot{}
	}
	return m.snap
}

// Live returns the current (or last) live period and the accumulated total,
// including the ongoing period.
func (m *ScannerModel) Live() (current, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	total = m.totalLive
	if m.live {
		total += m.lastLive
	}
	return m.lastLive, total
}

func (m *ScannerModel) SetStatus(s string) {
	if m != nil {
		m.status = s
	}
}

func (m *ScannerModel) Status() string {
	if m == nil {
		return ""
	}
	return m.status
}

// SetBusy marks an analysis in flight.
func (m *ScannerModel) SetBusy(b bool) {
	if m != nil {
		m.busy = b
	}
}

func (m *ScannerModel) Busy() bool { return m != nil && m.busy }

// SetResult stores a finished analysis and counts it.
func (m *ScannerModel) SetResult(r Result) {
	if m == nil {
		return
	}
	m.result = r
	m.hasResult = true
	m.scans++
}

func (m *ScannerModel) Result() (Result, bool) {
	if m == nil {
		return Result{}, false
	}
	return m.result, m.hasResult
}

// Scans is the number of analyses completed in this run.
func (m *ScannerModel) Scans() int {
	if m == nil {
		return 0
	}
	return m.scans
}
