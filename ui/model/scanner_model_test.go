package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
)

func TestScannerModel_LiveTime(t *testing.T) {
	m := NewScannerModel()
	base := time.Unix(0, 0)
	active := camera.Snapshot{State: camera.StateActive}
	idle := camera.Snapshot{State: camera.StateIdle}

	m.ApplySnapshot(camera.Snapshot{State: camera.StateStarting}, base)
	if cur, total := m.Live(); cur != 0 || total != 0 {
		t.Fatalf("starting should not count; got cur=%v total=%v", cur, total)
	}

	m.ApplySnapshot(active, base)
	m.Tick(base.Add(5 * time.Second))
	cur, total := m.Live()
	if cur != 5*time.Second || total != 5*time.Second {
		t.Fatalf("expected 5s live; got cur=%v total=%v", cur, total)
	}

	m.ApplySnapshot(idle, base.Add(6*time.Second))
	m.Tick(base.Add(9 * time.Second))
	cur, total = m.Live()
	if cur != 6*time.Second || total != 6*time.Second {
		t.Fatalf("idle ticks must not change durations; got cur=%v total=%v", cur, total)
	}

	m.ApplySnapshot(active, base.Add(10*time.Second))
	m.Tick(base.Add(13 * time.Second))
	cur, total = m.Live()
	if cur != 3*time.Second || total != 9*time.Second {
		t.Fatalf("second period expected cur=3s total=9s; got cur=%v total=%v", cur, total)
	}
}

func TestScannerModel_Result(t *testing.T) {
	m := NewScannerModel()
	if _, ok := m.Result(); ok {
		t.Fatalf("fresh model should have no result")
	}
	m.SetResult(Result{Prediction: diagnosis.Prediction{Disease: "Blast", Confidence: 0.9}})
	m.SetResult(Result{Prediction: diagnosis.Prediction{Disease: "Brown Spot"}})
	r, ok := m.Result()
	if !ok || r.Prediction.Disease != "Brown Spot" || m.Scans() != 2 {
		t.Fatalf("unexpected result state: ok=%v disease=%q scans=%d", ok, r.Prediction.Disease, m.Scans())
	}
}

func TestScannerModel_NilSafe(t *testing.T) {
	var m *ScannerModel
	m.ApplySnapshot(camera.Snapshot{State: camera.StateActive}, time.Now())
	m.SetStatus("x")
	m.SetBusy(true)
	m.SetResult(Result{})
	if m.Status() != "" || m.Busy() || m.Scans() != 0 {
		t.Fatalf("nil model should report zero values")
	}
}

func TestResult_Report(t *testing.T) {
	r := Result{
		Prediction: diagnosis.Prediction{
			Disease:     "Blast",
			Confidence:  91.5,
			Description: "Fungal disease.",
			Symptoms:    []string{"Diamond-shaped lesions"},
		},
		Fertilizer: fertilizer.Recommendation{
			Fertilizer:    "Tricyclazole",
			Guidelines:    "Spray at boot stage",
			Effectiveness: 90,
			SuitableFor:   []string{"Rice", "Wheat"},
		},
	}
	got := r.Report()
	for _, want := range []string{
		"Diagnosis: Blast (91.5% confidence)",
		"  - Diamond-shaped lesions",
		"Fertilizer: Tricyclazole (synthetic, 90% effective)",
		"Suitable for: Rice, Wheat",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}

	r.FertilizerErr = errors.New("timeout")
	if got := r.Report(); !strings.Contains(got, "Fertilizer: unavailable (timeout)") || strings.Contains(got, "Tricyclazole") {
		t.Fatalf("fertilizer error not rendered:\n%s", got)
	}
}
