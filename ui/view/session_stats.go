package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// LiveStats shows how long the camera has been on.
type LiveStats interface {
	SetLive(current, total time.Duration)
}

type liveStats struct {
	currentLbl *LabelWidget
	totalLbl   *LabelWidget
	last       [2]int
}

// NewLiveStats grids the current and total labels at (row, startCol) and
// (row, startCol+1) inside parent.
func NewLiveStats(parent *FrameWidget, row, startCol int) LiveStats {
	s := &liveStats{currentLbl: Label(Width(14)), totalLbl: Label(Width(14)), last: [2]int{-1, -1}}
	Grid(s.currentLbl, In(parent), Row(row), Column(startCol), Sticky("w"), Padx("0.2m"))
	Grid(s.totalLbl, In(parent), Row(row), Column(startCol+1), Sticky("w"), Padx("0.2m"))
	s.SetLive(0, 0)
	return s
}

// SetLive updates both labels; unchanged seconds are not repainted.
func (s *liveStats) SetLive(current, total time.Duration) {
	if s == nil || s.currentLbl == nil {
		return
	}
	cur, tot := int(current.Seconds()), int(total.Seconds())
	if cur != s.last[0] {
		s.currentLbl.Configure(Txt("Live: " + clock(cur)))
	}
	if tot != s.last[1] {
		s.totalLbl.Configure(Txt("Total: " + clock(tot)))
	}
	s.last = [2]int{cur, tot}
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
