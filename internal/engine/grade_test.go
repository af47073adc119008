package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolbus/internal/model"
)

func TestLetterGradeBoundaries(t *testing.T) {
	e := New(DefaultConfig())
	cases := []struct {
		pct  float64
		want Grade
	}{
		{100, GradeA}, {80.0, GradeA}, {79.99, GradeB}, {60.0, GradeB}, {59.99, GradeC},
		{50.0, GradeC}, {49.99, GradeD}, {30.0, GradeD}, {29.99, GradeF}, {0, GradeF},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, e.LetterGrade(tc.pct), "pct=%v", tc.pct)
	}
}

func TestGradeRouteZeroCapacity(t *testing.T) {
	e := New(DefaultConfig())
	g := e.GradeRoute(model.Route{ID: "r", TotalStudents: 12, Capacity: 0})
	assert.Equal(t, 0.0, g.UtilizationPct)
	assert.Equal(t, GradeF, g.LetterGrade)
}

func TestUtilizationNeverNegative(t *testing.T) {
	assert.Equal(t, 0.0, Utilization(-5, 72))
	assert.Equal(t, 0.0, Utilization(-5, 0))
	assert.Equal(t, 50.0, Utilization(36, 72))

	g := New(DefaultConfig()).GradeRoute(model.Route{ID: "r", TotalStudents: -3, Capacity: 72})
	assert.Equal(t, 0.0, g.UtilizationPct)
	assert.Equal(t, GradeF, g.LetterGrade)
}

func TestGradeRouteUtilization(t *testing.T) {
	e := New(DefaultConfig())
	g := e.GradeRoute(model.Route{ID: "r", TotalStudents: 60, Capacity: 72})
	assert.InDelta(t, 83.33, g.UtilizationPct, 0.01)
	assert.Equal(t, GradeA, g.LetterGrade)

	g = e.GradeRoute(model.Route{ID: "r", TotalStudents: 90, Capacity: 72})
	assert.Greater(t, g.UtilizationPct, 100.0)
	assert.Equal(t, GradeA, g.LetterGrade)
}

func TestLetterGradeCustomBands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bands = GradeBands{A: 90, B: 75, C: 60, D: 40}
	e := New(cfg)
	assert.Equal(t, GradeB, e.LetterGrade(80))
	assert.Equal(t, GradeF, e.LetterGrade(39.9))
}
