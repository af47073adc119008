package engine

import (
	"github.com/shopspring/decimal"

	"schoolbus/internal/model"
)

// ScenarioResult is a point-in-time projection over the routes it was given.
type ScenarioResult struct {
	Type             model.ScenarioType    `json:"scenarioType"`
	Parameters       model.ScenarioParams  `json:"parameters"`
	Payload          model.ScenarioPayload `json:"result"`
	EstimatedSavings decimal.Decimal       `json:"estimatedSavings"`
	RoutesAffected   int                   `json:"routesAffected"`
	StudentsAffected int                   `json:"studentsAffected"`
}

// RunConsolidationScenario projects pairwise merges of active routes below targetUtilizationPct.
func (e *Engine) RunConsolidationScenario(routes []model.Route, targetUtilizationPct float64) (ScenarioResult, error) {
	return e.RunScenario(routes, model.ConsolidationParams{TargetUtilizationPct: targetUtilizationPct})
}

// RunBellShiftScenario projects buses freed by shifting tier 2 and 3 bell times.
func (e *Engine) RunBellShiftScenario(routes []model.Route, shiftMinutes int) (ScenarioResult, error) {
	return e.RunScenario(routes, model.BellTimeShiftParams{ShiftMinutes: shiftMinutes})
}

// RunScenario validates p and dispatches on its kind. Inactive routes are ignored.
func (e *Engine) RunScenario(routes []model.Route, p model.ScenarioParams) (ScenarioResult, error) {
	if p == nil {
		return ScenarioResult{}, model.Invalid("parameters", "required")
	}
	if err := p.Validate(); err != nil {
		return ScenarioResult{}, err
	}
	switch p := p.(type) {
	case model.ConsolidationParams:
		return e.consolidate(routes, p), nil
	case model.BellTimeShiftParams:
		return e.shiftBells(routes, p), nil
	default:
		return ScenarioResult{}, model.Invalid("scenarioType", "unsupported parameters %T", p)
	}
}

func (e *Engine) consolidate(routes []model.Route, p model.ConsolidationParams) ScenarioResult {
	numbers := []string{}
	students := 0
	for _, r := range routes {
		if !r.Active() {
			continue
		}
		if Utilization(r.TotalStudents, r.Capacity) < p.TargetUtilizationPct {
			numbers = append(numbers, r.RouteNumber)
			students += r.TotalStudents
		}
	}
	// Two underutilized routes fold into one bus.
	merges := len(numbers) / 2
	return ScenarioResult{
		Type:             model.ScenarioConsolidation,
		Parameters:       p,
		Payload:          model.ConsolidationPayload{UnderutilizedRoutes: numbers, PotentialMerges: merges},
		EstimatedSavings: e.cfg.CostPerEliminatedRoute.Mul(decimal.NewFromInt(int64(merges))),
		RoutesAffected:   len(numbers),
		StudentsAffected: students,
	}
}

func (e *Engine) shiftBells(routes []model.Route, p model.BellTimeShiftParams) ScenarioResult {
	affected, students := 0, 0
	for _, r := range routes {
		if r.Active() && r.Tier >= 2 {
			affected++
			students += r.TotalStudents
		}
	}
	absorbed := decimal.NewFromInt(int64(affected)).Mul(decimal.NewFromFloat(e.cfg.BellShiftAbsorptionRate)).Floor()
	return ScenarioResult{
		Type:             model.ScenarioBellTimeShift,
		Parameters:       p,
		Payload:          model.BellTimeShiftPayload{ShiftMinutes: p.ShiftMinutes, RoutesRetiered: affected},
		EstimatedSavings: absorbed.Mul(e.cfg.CostPerEliminatedRoute),
		RoutesAffected:   affected,
		StudentsAffected: students,
	}
}
