// Package formula holds the frozen, versioned scoring formulas. A Version is
// loaded once from the embedded registry, validated, and never mutated; a
// change to weights or guardrail constants requires a new version entry.
package formula

import (
	_ "embed"
	"math"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed versions.yaml
var versionsYAML []byte

// weightTolerance bounds float drift when checking that weights sum to 1.0.
const weightTolerance = 1e-9

// Weights are the four base-formula weights. They must sum to exactly 1.0.
type Weights struct {
	Relevance   float64 `yaml:"relevance"`
	Volume      float64 `yaml:"volume"`
	Competition float64 `yaml:"competition"`
	Trend       float64 `yaml:"trend"`
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Relevance + w.Volume + w.Competition + w.Trend
}

// Guardrails are the rule-based score adjustments, expressed as fractions of
// the current score.
type Guardrails struct {
	InformationalNoGeoPenalty float64 `yaml:"informational_no_geo_penalty"`
	ForeignGeoPenalty         float64 `yaml:"foreign_geo_penalty"`
	GenericSingleWordPenalty  float64 `yaml:"generic_single_word_penalty"`
	OptimalLengthBonus        float64 `yaml:"optimal_length_bonus"`
	CommercialIndicatorBonus  float64 `yaml:"commercial_indicator_bonus"`
}

// Version is one frozen formula revision.
type Version struct {
	Name              string             `yaml:"-"`
	Weights           Weights            `yaml:"weights"`
	IntentMultipliers map[string]float64 `yaml:"intent_multipliers"`
	GeoBoost          float64            `yaml:"geo_boost"`
	Guardrails        Guardrails         `yaml:"guardrails"`
}

// Registry is the set of known formula versions.
type Registry struct {
	defaultName string
	versions    map[string]Version
}

type registryFile struct {
	Default  string             `yaml:"default"`
	Versions map[string]Version `yaml:"versions"`
}

// Load parses and validates the embedded version registry.
func Load() (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(versionsYAML, &file); err != nil {
		return nil, eris.Wrap(err, "formula: parse registry")
	}
	if len(file.Versions) == 0 {
		return nil, eris.New("formula: registry has no versions")
	}
	if _, ok := file.Versions[file.Default]; !ok {
		return nil, eris.Errorf("formula: default version %q not defined", file.Default)
	}

	r := &Registry{defaultName: file.Default, versions: make(map[string]Version, len(file.Versions))}
	for name, v := range file.Versions {
		v.Name = name
		if err := validate(v); err != nil {
			return nil, err
		}
		r.versions[name] = v
	}
	return r, nil
}

// Default returns the registry's default version.
func (r *Registry) Default() Version {
	return r.versions[r.defaultName]
}

// Get returns the named version, or an error when it does not exist.
func (r *Registry) Get(name string) (Version, error) {
	v, ok := r.versions[name]
	if !ok {
		return Version{}, eris.Errorf("formula: unknown version %q", name)
	}
	return v, nil
}

func validate(v Version) error {
	if diff := math.Abs(v.Weights.Sum() - 1.0); diff > weightTolerance {
		return eris.Errorf("formula: %s weights sum to %.12f, want 1.0", v.Name, v.Weights.Sum())
	}
	if v.GeoBoost < 1.0 {
		return eris.Errorf("formula: %s geo boost %.2f below 1.0", v.Name, v.GeoBoost)
	}
	for _, intent := range []string{"transactional", "commercial", "informational"} {
		m, ok := v.IntentMultipliers[intent]
		if !ok {
			return eris.Errorf("formula: %s missing %s multiplier", v.Name, intent)
		}
		if m <= 0 || m > 1.0 {
			return eris.Errorf("formula: %s %s multiplier %.2f out of (0,1]", v.Name, intent, m)
		}
	}
	g := v.Guardrails
	for _, f := range []float64{
		g.InformationalNoGeoPenalty, g.ForeignGeoPenalty, g.GenericSingleWordPenalty,
		g.OptimalLengthBonus, g.CommercialIndicatorBonus,
	} {
		if f < 0 || f >= 1.0 {
			return eris.Errorf("formula: %s guardrail fraction %.2f out of [0,1)", v.Name, f)
		}
	}
	return nil
}
