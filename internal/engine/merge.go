package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"schoolbus/internal/model"
)

// MergeSimulation is the projected outcome of folding the selected routes into one.
// The merged route is assumed to run the largest selected vehicle.
type MergeSimulation struct {
	SelectedRouteIDs        []string        `json:"selectedRouteIds"`
	TotalStudents           int             `json:"totalStudents"`
	ResultingCapacity       int             `json:"resultingCapacity"`
	ResultingUtilizationPct float64         `json:"resultingUtilizationPct"`
	RoutesEliminated        int             `json:"routesEliminated"`
	EstimatedSavings        decimal.Decimal `json:"estimatedSavings"`
	OverCapacity            bool            `json:"overCapacity"`
}

// Warnings lists conditions a caller must show alongside the simulation.
func (m MergeSimulation) Warnings() []string {
	var w []string
	if m.OverCapacity {
		w = append(w, fmt.Sprintf("merged route needs %d seats but the largest bus has %d (%.1f%% utilization)",
			m.TotalStudents, m.ResultingCapacity, m.ResultingUtilizationPct))
	}
	return w
}

// SimulateMerge consolidates two or more distinct routes. An over-capacity
// result is still returned, flagged with OverCapacity.
func (e *Engine) SimulateMerge(routes []model.Route) (MergeSimulation, error) {
	if len(routes) < 2 {
		return MergeSimulation{}, model.Invalid("routes", "a merge needs at least 2 routes, got %d", len(routes))
	}

	seen := make(map[string]struct{}, len(routes))
	ids := make([]string, 0, len(routes))
	students, capacity := 0, 0
	for _, r := range routes {
		if _, dup := seen[r.ID]; dup {
			return MergeSimulation{}, model.Invalid("routes", "route %s selected more than once", r.ID)
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
		students += r.TotalStudents
		capacity = max(capacity, r.Capacity)
	}

	eliminated := len(routes) - 1
	util := Utilization(students, capacity)
	return MergeSimulation{
		SelectedRouteIDs:        ids,
		TotalStudents:           students,
		ResultingCapacity:       capacity,
		ResultingUtilizationPct: util,
		RoutesEliminated:        eliminated,
		EstimatedSavings:        e.cfg.CostPerEliminatedRoute.Mul(decimal.NewFromInt(int64(eliminated))),
		OverCapacity:            util > 100,
	}, nil
}
