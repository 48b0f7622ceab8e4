package memory

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/untoldecay/rwm/internal/types"
)

// Weights holds the scoring constants the bundle composer applies to
// candidate items. A project can override any subset through a
// policy.toml file; everything else keeps the built-in value.
type Weights struct {
	// Base scores per candidate type.
	TaskBase float64 `toml:"task_base"`
	Decision float64 `toml:"decision"`
	Failure  float64 `toml:"failure"`
	Note     float64 `toml:"note"`
	Fact     float64 `toml:"fact"`

	// Recency boosts decay linearly with age in hours and are clamped
	// at these caps.
	TaskRecencyCap  float64 `toml:"task_recency_cap"`
	EventRecencyCap float64 `toml:"event_recency_cap"`
}

// policyFile mirrors the on-disk layout of policy.toml.
type policyFile struct {
	Weights Weights `toml:"weights"`
}

// DefaultWeights returns the built-in scoring constants.
func DefaultWeights() Weights {
	return Weights{
		TaskBase:        5.0,
		Decision:        3.5,
		Failure:         4.0,
		Note:            2.0,
		Fact:            1.5,
		TaskRecencyCap:  3.0,
		EventRecencyCap: 4.0,
	}
}

// Validate rejects weight sets that would zero out or invert scoring.
func (w *Weights) Validate() error {
	if w.TaskBase <= 0 || w.Decision <= 0 || w.Failure <= 0 || w.Note <= 0 || w.Fact <= 0 {
		return types.NewError(types.ErrValidation, "policy weights must be positive")
	}
	if w.TaskRecencyCap < 0 || w.EventRecencyCap < 0 {
		return types.NewError(types.ErrValidation, "policy recency caps must not be negative")
	}
	return nil
}

// LoadPolicy reads scoring weights from a policy.toml file. A missing
// file yields the defaults. A malformed file or an out-of-range weight
// yields a validation error, with the defaults returned unchanged so
// the caller can keep running on the built-ins.
func LoadPolicy(path string) (Weights, error) {
	defaults := DefaultWeights()
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from project config
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, types.WrapError(types.ErrIO, "read policy", err)
	}

	// Pre-fill with defaults so a partial [weights] table overrides
	// only the keys it names.
	pf := policyFile{Weights: defaults}
	if err := toml.Unmarshal(data, &pf); err != nil {
		return defaults, types.WrapError(types.ErrValidation, "parse policy", err)
	}
	if err := pf.Weights.Validate(); err != nil {
		return defaults, err
	}
	return pf.Weights, nil
}
