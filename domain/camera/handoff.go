package camera

import (
	"context"
	"errors"
)

// ErrHandoffOccupied is returned by Put when an artifact is already waiting.
var ErrHandoffOccupied = errors.New("camera: handoff already holds an artifact")

// Handoff passes one artifact from the scanner screen to the results screen.
// The navigation layer owns it; each artifact is consumed exactly once.
type Handoff struct {
	slot chan *Artifact
}

func NewHandoff() *Handoff {
	return &Handoff{slot: make(chan *Artifact, 1)}
}

// Put stores a for the next Take. It never blocks.
func (h *Handoff) Put(a *Artifact) error {
	if a == nil {
		return errors.New("camera: nil artifact")
	}
	select {
	case h.slot <- a:
		return nil
	default:
		return ErrHandoffOccupied
	}
}

// Take waits for an artifact and removes it from the slot.
func (h *Handoff) Take(ctx context.Context) (*Artifact, error) {
	select {
	case a := <-h.slot:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryTake returns the waiting artifact without blocking.
func (h *Handoff) TryTake() (*Artifact, bool) {
	select {
	case a := <-h.slot:
		return a, true
	default:
		return nil, false
	}
}
