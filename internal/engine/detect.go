package engine

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"schoolbus/internal/model"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

func (s Severity) rank() int {
	if s == SeverityHigh {
		return 0
	}
	return 1
}

type FindingType string

const (
	FindingLowUtilization   FindingType = "Low Utilization"
	FindingBelowTarget      FindingType = "Below Target Utilization"
	FindingExcessiveRide    FindingType = "Excessive Ride Time"
	FindingLowOnTime        FindingType = "Low On-Time Rate"
	FindingHighCostPerPupil FindingType = "High Cost Per Student"
)

// InefficiencyFinding is one rule hit for one route.
type InefficiencyFinding struct {
	RouteID     string      `json:"routeId"`
	RouteNumber string      `json:"routeNumber,omitempty"`
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	Detail      string      `json:"detail"`
}

// routeFindings applies every rule to r in rule order.
func (e *Engine) routeFindings(r model.Route) []InefficiencyFinding {
	var out []InefficiencyFinding
	add := func(t FindingType, sev Severity, detail string) {
		out = append(out, InefficiencyFinding{RouteID: r.ID, RouteNumber: r.RouteNumber, Type: t, Severity: sev, Detail: detail})
	}

	util := Utilization(r.TotalStudents, r.Capacity)
	if util < e.cfg.LowUtilizationPct {
		add(FindingLowUtilization, SeverityHigh,
			fmt.Sprintf("%.1f%% utilization (%d of %d seats), below %.0f%%", util, r.TotalStudents, r.Capacity, e.cfg.LowUtilizationPct))
	} else if util < e.cfg.TargetUtilizationPct {
		add(FindingBelowTarget, SeverityMedium,
			fmt.Sprintf("%.1f%% utilization, below %.0f%% target", util, e.cfg.TargetUtilizationPct))
	}
	if r.AvgRideTimeMinutes > e.cfg.MaxRideTimeMinutes {
		add(FindingExcessiveRide, SeverityHigh,
			fmt.Sprintf("average ride %.0f min exceeds %.0f min", r.AvgRideTimeMinutes, e.cfg.MaxRideTimeMinutes))
	}
	if r.OnTimePct < e.cfg.MinOnTimePct {
		add(FindingLowOnTime, SeverityMedium,
			fmt.Sprintf("on-time rate %.1f%% below %.0f%%", r.OnTimePct, e.cfg.MinOnTimePct))
	}
	if r.CostPerStudent > e.cfg.MaxCostPerStudent {
		add(FindingHighCostPerPupil, SeverityMedium,
			fmt.Sprintf("cost per student %.2f exceeds %.2f", r.CostPerStudent, e.cfg.MaxCostPerStudent))
	}
	return out
}

// DetectInefficiencies evaluates routes in order. High findings come first;
// within a severity the input order is kept.
func (e *Engine) DetectInefficiencies(routes []model.Route) []InefficiencyFinding {
	out := []InefficiencyFinding{}
	for _, r := range routes {
		out = append(out, e.routeFindings(r)...)
	}
	rankBySeverity(out)
	return out
}

// DetectInefficienciesParallel splits routes into contiguous partitions,
// evaluates them concurrently and ranks the concatenation. The result equals
// DetectInefficiencies(routes).
func (e *Engine) DetectInefficienciesParallel(ctx context.Context, routes []model.Route, workers int) ([]InefficiencyFinding, error) {
	if workers > len(routes) {
		workers = len(routes)
	}
	if workers <= 1 {
		return e.DetectInefficiencies(routes), nil
	}

	chunk := (len(routes) + workers - 1) / workers
	parts := make([][]InefficiencyFinding, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		start := i * chunk
		if start >= len(routes) {
			break
		}
		end := min(start+chunk, len(routes))
		g.Go(func() error {
			var fs []InefficiencyFinding
			for _, r := range routes[start:end] {
				if err := gctx.Err(); err != nil {
					return err
				}
				fs = append(fs, e.routeFindings(r)...)
			}
			parts[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("detect inefficiencies: %w", err)
	}

	out := []InefficiencyFinding{}
	for _, p := range parts {
		out = append(out, p...)
	}
	rankBySeverity(out)
	return out, nil
}

// rankBySeverity must stay a stable sort on severity alone.
func rankBySeverity(fs []InefficiencyFinding) {
	slices.SortStableFunc(fs, func(a, b InefficiencyFinding) int {
		return a.Severity.rank() - b.Severity.rank()
	})
}
