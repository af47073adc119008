package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ScenarioType string

const (
	ScenarioConsolidation ScenarioType = "consolidation"
	ScenarioBellTimeShift ScenarioType = "bell_time_shift"
)

type ScenarioStatus string

const (
	ScenarioDraft  ScenarioStatus = "draft"
	ScenarioActive ScenarioStatus = "active"
)

// ScenarioParams is the input of one what-if kind. The implementations in this
// package are the complete set; callers switch on the concrete type.
type ScenarioParams interface {
	Type() ScenarioType
	Validate() error
	isScenarioParams()
}

// ConsolidationParams selects routes below a utilization threshold for pairwise merging.
type ConsolidationParams struct {
	TargetUtilizationPct float64 `json:"targetUtilizationPct"`
}

func (ConsolidationParams) Type() ScenarioType { return ScenarioConsolidation }
func (ConsolidationParams) isScenarioParams()  {}

// Validate requires the target in (0, 100].
func (p ConsolidationParams) Validate() error {
	if !(p.TargetUtilizationPct > 0 && p.TargetUtilizationPct <= 100) {
		return Invalid("targetUtilizationPct", "must be in (0, 100], got %v", p.TargetUtilizationPct)
	}
	return nil
}

// BellTimeShiftParams staggers bell times so tier 2 and 3 runs can be absorbed by earlier buses.
type BellTimeShiftParams struct {
	ShiftMinutes int `json:"shiftMinutes"`
}

func (BellTimeShiftParams) Type() ScenarioType { return ScenarioBellTimeShift }
func (BellTimeShiftParams) isScenarioParams()  {}

func (p BellTimeShiftParams) Validate() error {
	if p.ShiftMinutes <= 0 {
		return Invalid("shiftMinutes", "must be > 0, got %d", p.ShiftMinutes)
	}
	return nil
}

// ScenarioPayload is the kind-specific part of a scenario result.
type ScenarioPayload interface {
	Type() ScenarioType
	isScenarioPayload()
}

type ConsolidationPayload struct {
	UnderutilizedRoutes []string `json:"underutilizedRoutes"`
	PotentialMerges     int      `json:"potentialMerges"`
}

func (ConsolidationPayload) Type() ScenarioType { return ScenarioConsolidation }
func (ConsolidationPayload) isScenarioPayload() {}

type BellTimeShiftPayload struct {
	ShiftMinutes   int `json:"shiftMinutes"`
	RoutesRetiered int `json:"routesRetiered"`
}

func (BellTimeShiftPayload) Type() ScenarioType { return ScenarioBellTimeShift }
func (BellTimeShiftPayload) isScenarioPayload() {}

// DecodeParams decodes raw JSON parameters for the given scenario type.
func DecodeParams(t ScenarioType, raw []byte) (ScenarioParams, error) {
	switch t {
	case ScenarioConsolidation:
		var p ConsolidationParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, Invalid("parameters", "decode %s: %v", t, err)
		}
		return p, nil
	case ScenarioBellTimeShift:
		var p BellTimeShiftParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, Invalid("parameters", "decode %s: %v", t, err)
		}
		return p, nil
	default:
		return nil, Invalid("scenarioType", "unknown scenario type %q", t)
	}
}

// DecodePayload decodes a stored result payload for the given scenario type.
func DecodePayload(t ScenarioType, raw []byte) (ScenarioPayload, error) {
	switch t {
	case ScenarioConsolidation:
		var p ConsolidationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", t, err)
		}
		return p, nil
	case ScenarioBellTimeShift:
		var p BellTimeShiftPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", t, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown scenario type %q", t)
	}
}

// Scenario is a named, persisted what-if run. It is written once and never updated.
type Scenario struct {
	ID               string          `json:"id"`
	DistrictID       string          `json:"districtId"`
	Name             string          `json:"name"`
	Type             ScenarioType    `json:"scenarioType"`
	Parameters       ScenarioParams  `json:"parameters"`
	Result           ScenarioPayload `json:"result"`
	EstimatedSavings decimal.Decimal `json:"estimatedSavings"`
	RoutesAffected   int             `json:"routesAffected"`
	StudentsAffected int             `json:"studentsAffected"`
	Status           ScenarioStatus  `json:"status"`
	CreatedBy        string          `json:"createdBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// UnmarshalJSON resolves the parameter and result variants from scenarioType.
func (s *Scenario) UnmarshalJSON(b []byte) error {
	type plain Scenario
	var aux struct {
		plain
		Parameters json.RawMessage `json:"parameters"`
		Result     json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Scenario(aux.plain)
	if len(aux.Parameters) > 0 && string(aux.Parameters) != "null" {
		p, err := DecodeParams(s.Type, aux.Parameters)
		if err != nil {
			return err
		}
		s.Parameters = p
	}
	if len(aux.Result) > 0 && string(aux.Result) != "null" {
		r, err := DecodePayload(s.Type, aux.Result)
		if err != nil {
			return err
		}
		s.Result = r
	}
	return nil
}

// Validate checks that a record is complete and its variants agree with its type.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return Invalid("id", "required")
	}
	if strings.TrimSpace(s.DistrictID) == "" {
		return Invalid("districtId", "required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return Invalid("name", "required")
	}
	if s.Parameters == nil || s.Result == nil {
		return Invalid("parameters", "parameters and result are required")
	}
	if s.Parameters.Type() != s.Type || s.Result.Type() != s.Type {
		return Invalid("scenarioType", "parameters %s and result %s do not match %s", s.Parameters.Type(), s.Result.Type(), s.Type)
	}
	switch s.Status {
	case ScenarioDraft, ScenarioActive:
	default:
		return Invalid("status", "unknown status %q", s.Status)
	}
	return s.Parameters.Validate()
}
