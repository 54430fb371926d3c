package presenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
	"github.com/soocke/leafscan-go/store"
	"github.com/soocke/leafscan-go/ui/model"
)

// Diagnoser is the prediction service as seen by the results panel.
type Diagnoser interface {
	Predict(ctx context.Context, a *camera.Artifact) (diagnosis.Prediction, error)
	Recommend(ctx context.Context, disease string) (fertilizer.Recommendation, error)
}

// HistoryRecorder persists finished scans. It may be nil.
type HistoryRecorder interface {
	Record(ctx context.Context, sc store.Scan) error
	SetFertilizer(ctx context.Context, id, fertilizer string) error
}

// HandoffSource yields the artifact waiting for analysis.
type HandoffSource interface {
	TryTake() (*camera.Artifact, bool)
}

// ResultsView renders analysis outcomes.
type ResultsView interface {
	SetStatus(text string)
	ShowResult(r model.Result)
}

// ResultsPresenter consumes the hand-off, runs the diagnosis off the UI
// thread and shows the outcome.
type ResultsPresenter struct {
	ctx       context.Context
	handoff   HandoffSource
	diagnoser Diagnoser
	history   HistoryRecorder
	model     *model.ScannerModel
	view      ResultsView
	logger    *slog.Logger
	run       func(func())
	queue     uiQueue
}

func NewResultsPresenter(ctx context.Context, handoff HandoffSource, d Diagnoser, history HistoryRecorder, m *model.ScannerModel, view ResultsView, logger *slog.Logger) *ResultsPresenter {
	return &ResultsPresenter{ctx: ctx, handoff: handoff, diagnoser: d, history: history, model: m, view: view, logger: logger, run: goRunner}
}

// SetRunner replaces the goroutine runner.
func (p *ResultsPresenter) SetRunner(run func(func())) {
	if p != nil && run != nil {
		p.run = run
	}
}

// Tick takes a waiting artifact, if any, and applies finished analyses.
func (p *ResultsPresenter) Tick(time.Time) {
	if p == nil || p.handoff == nil || p.model == nil || p.view == nil {
		return
	}
	if art, ok := p.handoff.TryTake(); ok {
		if p.diagnoser == nil {
			if p.logger != nil {
				p.logger.Warn("analysis requested without a diagnosis service", "artifact", art.String())
			}
			p.model.SetBusy(false)
			p.setStatus("Analysis is unavailable: no diagnosis service is configured.")
		} else {
			p.run(func() { p.analyze(art) })
		}
	}
	p.queue.drain()
}

func (p *ResultsPresenter) analyze(art *camera.Artifact) {
	pred, err := p.diagnoser.Predict(p.ctx, art)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("prediction failed", "artifact", art.String(), "error", err)
		}
		p.queue.post(func() {
			p.model.SetBusy(false)
			p.setStatus("Analysis failed: " + err.Error())
		})
		return
	}

	var scanID string
	if p.history != nil {
		sc := store.NewScan(art, pred)
		if err := p.history.Record(p.ctx, sc); err != nil {
			if p.logger != nil {
				p.logger.Warn("record scan", "error", err)
			}
		} else {
			scanID = sc.ID
		}
	}

	r := model.Result{Artifact: art, Prediction: pred}
	r.Fertilizer, r.FertilizerErr = p.diagnoser.Recommend(p.ctx, pred.Disease)
	if r.FertilizerErr != nil {
		if p.logger != nil {
			p.logger.Warn("fertilizer recommendation failed", "disease", pred.Disease, "error", r.FertilizerErr)
		}
	} else if scanID != "" {
		if err := p.history.SetFertilizer(p.ctx, scanID, r.Fertilizer.Fertilizer); err != nil && p.logger != nil {
			p.logger.Warn("record fertilizer", "scan", scanID, "error", err)
		}
	}

	p.queue.post(func() {
		p.model.SetBusy(false)
		p.model.SetResult(r)
		p.view.ShowResult(r)
		p.setStatus("Diagnosis: " + r.Headline())
	})
}

func (p *ResultsPresenter) setStatus(s string) {
	p.model.SetStatus(s)
	p.view.SetStatus(s)
}
