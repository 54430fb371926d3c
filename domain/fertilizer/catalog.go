// Package fertilizer holds the reference data that maps predicted diseases to
// descriptions, symptoms and treatment recommendations.
package fertilizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soocke/leafscan-go/assets"
	"gopkg.in/yaml.v3"
)

// Defaults applied to recommendations that arrive without detail.
const DefaultEffectiveness = 85

var (
	defaultSuitableFor = []string{"Rice", "Wheat", "Vegetables"}
	defaultBenefits    = []string{
		"Improves soil health",
		"Enhances nutrient absorption",
		"Promotes stronger root development",
	}
)

// Recommendation is a treatment for one disease.
type Recommendation struct {
	Fertilizer    string   `yaml:"fertilizer" json:"fertilizer"`
	Guidelines    string   `yaml:"guidelines" json:"guidelines"`
	Organic       bool     `yaml:"organic" json:"organic"`
	Effectiveness int      `yaml:"effectiveness" json:"effectiveness"`
	SuitableFor   []string `yaml:"suitable_for" json:"suitableFor"`
	Benefits      []string `yaml:"benefits" json:"benefits"`
}

// Disease is the reference entry for a predicted label.
type Disease struct {
	Name            string         `yaml:"name" json:"name"`
	Aliases         []string       `yaml:"aliases" json:"aliases,omitempty"`
	Healthy         bool           `yaml:"healthy" json:"healthy"`
	Description     string         `yaml:"description" json:"description"`
	Recommendations string         `yaml:"recommendations" json:"recommendations"`
	Symptoms        []string       `yaml:"symptoms" json:"symptoms"`
	Treatment       Recommendation `yaml:"treatment" json:"treatment"`
}

type document struct {
	Default  Recommendation `yaml:"default"`
	Diseases []Disease      `yaml:"diseases"`
}

// Catalog is an immutable lookup table keyed by case-insensitive disease name.
type Catalog struct {
	diseases []Disease
	index    map[string]int
	fallback Recommendation
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fertilizer: parse catalog: %w", err)
	}
	if doc.Default.Fertilizer == "" {
		return nil, errors.New("fertilizer: catalog has no default recommendation")
	}
	c := &Catalog{index: make(map[string]int), fallback: Complete(doc.Default)}
	for i, d := range doc.Diseases {
		if d.Name == "" {
			return nil, fmt.Errorf("fertilizer: disease %d has no name", i)
		}
		d.Treatment = Complete(d.Treatment)
		c.diseases = append(c.diseases, d)
		for _, k := range append([]string{d.Name}, d.Aliases...) {
			key := normalize(k)
			if _, dup := c.index[key]; dup {
				return nil, fmt.Errorf("fertilizer: duplicate disease %q", k)
			}
			c.index[key] = len(c.diseases) - 1
		}
	}
	return c, nil
}

var builtin = sync.OnceValues(func() (*Catalog, error) { return Parse(assets.CatalogYAML) })

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := builtin()
	if err != nil {
		panic(err)
	}
	return c
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Disease looks up a disease by name or alias.
func (c *Catalog) Disease(name string) (Disease, bool) {
	i, ok := c.index[normalize(name)]
	if !ok {
		return Disease{}, false
	}
	return c.diseases[i], true
}

// Recommend returns the treatment for name. Unknown diseases get the general
// purpose recommendation and ok=false.
func (c *Catalog) Recommend(name string) (r Recommendation, ok bool) {
	d, ok := c.Disease(name)
	if !ok || d.Treatment.Fertilizer == "" {
		return c.fallback, false
	}
	return d.Treatment, true
}

// Fallback returns the general purpose recommendation.
func (c *Catalog) Fallback() Recommendation { return c.fallback }

// Names lists canonical disease names in alphabetical order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.diseases))
	for _, d := range c.diseases {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

// Complete fills missing detail on a recommendation. Organic is inferred from
// the product name when not already set.
func Complete(r Recommendation) Recommendation {
	if r.Fertilizer == "" {
		r.Fertilizer = "Generic Fertilizer"
	}
	if r.Guidelines == "" {
		r.Guidelines = "Apply as directed"
	}
	if !r.Organic {
		r.Organic = strings.Contains(strings.ToLower(r.Fertilizer), "organic")
	}
	if r.Effectiveness <= 0 {
		r.Effectiveness = DefaultEffectiveness
	}
	if len(r.SuitableFor) == 0 {
		r.SuitableFor = append([]string(nil), defaultSuitableFor...)
	}
	if len(r.Benefits) == 0 {
		r.Benefits = append([]string(nil), defaultBenefits...)
	}
	return r
}
