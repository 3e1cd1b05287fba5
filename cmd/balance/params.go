package main

import (
	"github.com/pthm-cable/shellrace/config"
)

// ParamSpec defines a single tunable physics parameter.
type ParamSpec struct {
	Name    string
	Path    string // config path for logging
	Min     float64
	Max     float64
	Default float64
	apply   func(cfg *config.Config, v float64)
}

// ParamVector holds the tunable parameters in a fixed order.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the parameter set, with defaults taken from base.
func NewParamVector(base *config.Config) *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{
				Name: "base_cost", Path: "physics.base_cost",
				Min: 0.05, Max: 2.0, Default: base.Physics.BaseCost,
				apply: func(cfg *config.Config, v float64) { cfg.Physics.BaseCost = v },
			},
			{
				Name: "terrain_baseline", Path: "physics.terrain_baseline",
				Min: 2, Max: 30, Default: base.Physics.TerrainBaseline,
				apply: func(cfg *config.Config, v float64) { cfg.Physics.TerrainBaseline = v },
			},
			{
				Name: "jitter", Path: "physics.jitter",
				Min: 0, Max: 0.5, Default: base.Physics.Jitter,
				apply: func(cfg *config.Config, v float64) { cfg.Physics.Jitter = v },
			},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw values to the [0,1] search space.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp keeps every value within its bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].apply(cfg, v)
	}
}
