// Package engine grades route utilization, detects fleet inefficiencies and
// projects consolidation and bell-time-shift scenarios.
//
// All Engine methods are pure functions of their inputs and the calibration
// the Engine was built with; an Engine is safe for concurrent use.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GradeBands are inclusive lower bounds, in utilization percent, for grades A through D.
type GradeBands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

// Config calibrates the model to a district's cost structure.
type Config struct {
	CostPerEliminatedRoute  decimal.Decimal `json:"costPerEliminatedRoute"`
	BellShiftAbsorptionRate float64         `json:"bellShiftAbsorptionRate"`
	Bands                   GradeBands      `json:"gradeBands"`
	LowUtilizationPct       float64         `json:"lowUtilizationPct"`
	TargetUtilizationPct    float64         `json:"targetUtilizationPct"`
	MaxRideTimeMinutes      float64         `json:"maxRideTimeMinutes"`
	MinOnTimePct            float64         `json:"minOnTimePct"`
	MaxCostPerStudent       float64         `json:"maxCostPerStudent"`
}

// DefaultCostPerEliminatedRoute is the annual cost of one bus, driver and run.
var DefaultCostPerEliminatedRoute = decimal.NewFromInt(85000)

// DefaultConfig returns the stock calibration.
func DefaultConfig() Config {
	return Config{
		CostPerEliminatedRoute:  DefaultCostPerEliminatedRoute,
		BellShiftAbsorptionRate: 0.30,
		Bands:                   GradeBands{A: 80, B: 60, C: 50, D: 30},
		LowUtilizationPct:       50,
		TargetUtilizationPct:    65,
		MaxRideTimeMinutes:      60,
		MinOnTimePct:            85,
		MaxCostPerStudent:       2000,
	}
}

// Validate rejects calibrations that would make grading or savings meaningless.
func (c Config) Validate() error {
	if c.CostPerEliminatedRoute.IsNegative() {
		return fmt.Errorf("engine config: costPerEliminatedRoute must be >= 0, got %s", c.CostPerEliminatedRoute)
	}
	if c.BellShiftAbsorptionRate < 0 || c.BellShiftAbsorptionRate > 1 {
		return fmt.Errorf("engine config: bellShiftAbsorptionRate must be in [0, 1], got %v", c.BellShiftAbsorptionRate)
	}
	b := c.Bands
	if !(b.A > b.B && b.B > b.C && b.C > b.D && b.D >= 0) {
		return fmt.Errorf("engine config: grade bands must be strictly descending and >= 0, got A=%v B=%v C=%v D=%v", b.A, b.B, b.C, b.D)
	}
	if c.LowUtilizationPct <= 0 || c.LowUtilizationPct > c.TargetUtilizationPct {
		return fmt.Errorf("engine config: need 0 < lowUtilizationPct <= targetUtilizationPct, got %v and %v", c.LowUtilizationPct, c.TargetUtilizationPct)
	}
	if c.MaxRideTimeMinutes <= 0 {
		return fmt.Errorf("engine config: maxRideTimeMinutes must be > 0")
	}
	if c.MinOnTimePct < 0 || c.MinOnTimePct > 100 {
		return fmt.Errorf("engine config: minOnTimePct must be in [0, 100]")
	}
	if c.MaxCostPerStudent <= 0 {
		return fmt.Errorf("engine config: maxCostPerStudent must be > 0")
	}
	return nil
}

// Engine evaluates routes under one calibration.
type Engine struct {
	cfg Config
}

// New returns an Engine for cfg. The caller is expected to have validated cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the calibration in use.
func (e *Engine) Config() Config { return e.cfg }
