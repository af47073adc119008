package engine

import "schoolbus/internal/model"

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// EfficiencyGrade is recomputed on every call and never stored.
type EfficiencyGrade struct {
	UtilizationPct float64 `json:"utilizationPct"`
	LetterGrade    Grade   `json:"letterGrade"`
}

// Utilization returns students as a percentage of capacity, 0 when capacity is 0.
// Negative student counts are treated as 0.
func Utilization(students, capacity int) float64 {
	if capacity <= 0 || students < 0 {
		return 0
	}
	return float64(students) * 100 / float64(capacity)
}

// GradeRoute grades a route's capacity utilization.
func (e *Engine) GradeRoute(r model.Route) EfficiencyGrade {
	pct := Utilization(r.TotalStudents, r.Capacity)
	return EfficiencyGrade{UtilizationPct: pct, LetterGrade: e.LetterGrade(pct)}
}

// LetterGrade maps a utilization percentage onto the configured bands.
func (e *Engine) LetterGrade(pct float64) Grade {
	b := e.cfg.Bands
	switch {
	case pct >= b.A:
		return GradeA
	case pct >= b.B:
		return GradeB
	case pct >= b.C:
		return GradeC
	case pct >= b.D:
		return GradeD
	default:
		return GradeF
	}
}
