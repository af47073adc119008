package engine

import "schoolbus/internal/model"

// RouteGrade pairs a route with its grade for fleet listings.
type RouteGrade struct {
	RouteID     string `json:"routeId"`
	RouteNumber string `json:"routeNumber"`
	School      string `json:"school"`
	Tier        int    `json:"tier"`
	EfficiencyGrade
}

// FleetReport summarizes one evaluation pass over a district's active routes.
//
// LowUtilizationRoutes and GradeDOrFRoutes are reported separately. Under the
// default bands they count the same population; districts may calibrate them apart.
type FleetReport struct {
	DistrictID           string                `json:"districtId"`
	RouteCount           int                   `json:"routeCount"`
	TotalStudents        int                   `json:"totalStudents"`
	TotalCapacity        int                   `json:"totalCapacity"`
	FleetUtilizationPct  float64               `json:"fleetUtilizationPct"`
	MeanUtilizationPct   float64               `json:"meanUtilizationPct"`
	GradeCounts          map[Grade]int         `json:"gradeCounts"`
	LowUtilizationRoutes int                   `json:"lowUtilizationRoutes"`
	GradeDOrFRoutes      int                   `json:"gradeDOrFRoutes"`
	FindingCounts        map[FindingType]int   `json:"findingCounts"`
	Grades               []RouteGrade          `json:"grades"`
	Findings             []InefficiencyFinding `json:"findings"`
}

// GradeRoutes grades routes in input order.
func (e *Engine) GradeRoutes(routes []model.Route) []RouteGrade {
	out := make([]RouteGrade, 0, len(routes))
	for _, r := range routes {
		out = append(out, RouteGrade{
			RouteID:         r.ID,
			RouteNumber:     r.RouteNumber,
			School:          r.School,
			Tier:            r.Tier,
			EfficiencyGrade: e.GradeRoute(r),
		})
	}
	return out
}

// Summarize builds a FleetReport from routes and the findings already detected for them.
func (e *Engine) Summarize(districtID string, routes []model.Route, findings []InefficiencyFinding) FleetReport {
	rep := FleetReport{
		DistrictID:    districtID,
		RouteCount:    len(routes),
		GradeCounts:   map[Grade]int{GradeA: 0, GradeB: 0, GradeC: 0, GradeD: 0, GradeF: 0},
		FindingCounts: map[FindingType]int{},
		Grades:        e.GradeRoutes(routes),
		Findings:      findings,
	}
	sum := 0.0
	for i, g := range rep.Grades {
		rep.TotalStudents += routes[i].TotalStudents
		rep.TotalCapacity += routes[i].Capacity
		rep.GradeCounts[g.LetterGrade]++
		sum += g.UtilizationPct
		if g.UtilizationPct < e.cfg.LowUtilizationPct {
			rep.LowUtilizationRoutes++
		}
		if g.LetterGrade == GradeD || g.LetterGrade == GradeF {
			rep.GradeDOrFRoutes++
		}
	}
	if len(routes) > 0 {
		rep.MeanUtilizationPct = sum / float64(len(routes))
	}
	rep.FleetUtilizationPct = Utilization(rep.TotalStudents, rep.TotalCapacity)
	for _, f := range findings {
		rep.FindingCounts[f.Type]++
	}
	return rep
}
