package presenter

import "time"

// Refresher redraws a view on the UI thread.
type Refresher interface{ Refresh() }

// Loop aggregates feature presenters and drives periodic updates.
//
// It ticks the sub-presenters, refreshes the preview and invokes a
// scheduler callback. The zero value is usable (methods are nil-safe).
type Loop struct {
	Scanner  *ScannerPresenter
	Results  *ResultsPresenter
	State    *StatePresenter
	Preview  Refresher
	Schedule func()
}

func NewLoop(scanner *ScannerPresenter, results *ResultsPresenter, state *StatePresenter, preview Refresher, schedule func()) *Loop {
	return &Loop{Scanner: scanner, Results: results, State: state, Preview: preview, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	// Actions first so busy flags are current when the state presenter
	// recomputes the controls.
	l.Scanner.Tick(now)
	l.Results.Tick(now)
	l.State.Tick(now)
	if l.Preview != nil {
		l.Preview.Refresh()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
