package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"schoolbus/internal/engine"
)

// Calibration is one set of model overrides. Unset fields inherit.
type Calibration struct {
	CostPerEliminatedRoute  *float64 `yaml:"costPerEliminatedRoute"`
	BellShiftAbsorptionRate *float64 `yaml:"bellShiftAbsorptionRate"`
	GradeBands              *Bands   `yaml:"gradeBands"`
	LowUtilizationPct       *float64 `yaml:"lowUtilizationPct"`
	TargetUtilizationPct    *float64 `yaml:"targetUtilizationPct"`
	MaxRideTimeMinutes      *float64 `yaml:"maxRideTimeMinutes"`
	MinOnTimePct            *float64 `yaml:"minOnTimePct"`
	MaxCostPerStudent       *float64 `yaml:"maxCostPerStudent"`
}

type Bands struct {
	A *float64 `yaml:"a"`
	B *float64 `yaml:"b"`
	C *float64 `yaml:"c"`
	D *float64 `yaml:"d"`
}

// ModelFile is the MODEL_CONFIG document:
//
//	defaults:
//	  costPerEliminatedRoute: 85000
//	districts:
//	  d_rural:
//	    bellShiftAbsorptionRate: 0.2
type ModelFile struct {
	Defaults  Calibration            `yaml:"defaults"`
	Districts map[string]Calibration `yaml:"districts"`
}

// Model resolves the engine calibration per district.
type Model struct {
	defaults  engine.Config
	districts map[string]engine.Config
}

// DefaultModel calibrates every district with engine.DefaultConfig.
func DefaultModel() *Model {
	return &Model{defaults: engine.DefaultConfig(), districts: map[string]engine.Config{}}
}

// LoadModel reads a calibration file. An empty path yields DefaultModel.
func LoadModel(path string) (*Model, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultModel(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	m, err := ParseModel(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("model config %s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes and validates a calibration document. Unknown keys are rejected.
func ParseModel(r io.Reader) (*Model, error) {
	var f ModelFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defaults := f.Defaults.apply(engine.DefaultConfig())
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	m := &Model{defaults: defaults, districts: make(map[string]engine.Config, len(f.Districts))}
	for id, c := range f.Districts {
		cfg := c.apply(defaults)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("district %s: %w", id, err)
		}
		m.districts[id] = cfg
	}
	return m, nil
}

// For returns the calibration for districtID, falling back to the defaults.
func (m *Model) For(districtID string) engine.Config {
	if cfg, ok := m.districts[districtID]; ok {
		return cfg
	}
	return m.defaults
}

// Districts reports how many districts carry overrides.
func (m *Model) Districts() int { return len(m.districts) }

func (c Calibration) apply(base engine.Config) engine.Config {
	if c.CostPerEliminatedRoute != nil {
		base.CostPerEliminatedRoute = decimal.NewFromFloat(*c.CostPerEliminatedRoute)
	}
	set(&base.BellShiftAbsorptionRate, c.BellShiftAbsorptionRate)
	set(&base.LowUtilizationPct, c.LowUtilizationPct)
	set(&base.TargetUtilizationPct, c.TargetUtilizationPct)
	set(&base.MaxRideTimeMinutes, c.MaxRideTimeMinutes)
	set(&base.MinOnTimePct, c.MinOnTimePct)
	set(&base.MaxCostPerStudent, c.MaxCostPerStudent)
	if b := c.GradeBands; b != nil {
		set(&base.Bands.A, b.A)
		set(&base.Bands.B, b.B)
		set(&base.Bands.C, b.C)
		set(&base.Bands.D, b.D)
	}
	return base
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
