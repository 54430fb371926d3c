package model

import (
	"fmt"
	"strings"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
)

// Result is one completed analysis shown on the results panel.
type Result struct {
	Artifact      *camera.Artifact
	Prediction    diagnosis.Prediction
	Fertilizer    fertilizer.Recommendation
	FertilizerErr error
}

// Headline is the one-line diagnosis.
func (r Result) Headline() string {
	return fmt.Sprintf("%s (%.1f%% confidence)", r.Prediction.Disease, r.Prediction.Confidence)
}

// Report renders the result as plain text for the results panel.
func (r Result) Report() string {
	var b strings.Builder
	p := r.Prediction
	fmt.Fprintf(&b, "Diagnosis: %s\n", r.Headline())
	if r.Artifact != nil {
		fmt.Fprintf(&b, "Image: %s\n", r.Artifact)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Description)
	}
	if len(p.Symptoms) > 0 {
		b.WriteString("\nSymptoms:\n")
		for _, s := range p.Symptoms {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	if p.Recommendations != "" {
		fmt.Fprintf(&b, "\nRecommendations:\n  %s\n", p.Recommendations)
	}

	b.WriteString("\n")
	if r.FertilizerErr != nil {
		fmt.Fprintf(&b, "Fertilizer: unavailable (%v)\n", r.FertilizerErr)
		return b.String()
	}
	f := r.Fertilizer
	if f.Fertilizer == "" {
		return b.String()
	}
	kind := "synthetic"
	if f.Organic {
		kind = "organic"
	}
	fmt.Fprintf(&b, "Fertilizer: %s (%s, %d%% effective)\n", f.Fertilizer, kind, f.Effectiveness)
	if f.Guidelines != "" {
		fmt.Fprintf(&b, "Guidelines: %s\n", f.Guidelines)
	}
	if len(f.SuitableFor) > 0 {
		fmt.Fprintf(&b, "Suitable for: %s\n", strings.Join(f.SuitableFor, ", "))
	}
	if len(f.Benefits) > 0 {
		b.WriteString("Benefits:\n")
		for _, s := range f.Benefits {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return b.String()
}
