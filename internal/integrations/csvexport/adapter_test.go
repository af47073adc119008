package csvexport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus/internal/integrations"
	"schoolbus/internal/model"
)

const export = `Route ID,Route No,School,Tier,Bus,Driver,Students,Seats,Miles,On-Time %,Ride Time,Cost Per Student,Status
r-1,101,Lincoln,1,B-1,A. Lee,20,72,31.5,96%,28,"$1,850",Active
r-2,102,Lincoln,2,,,41,72,55.8,79,66,1400,
`

func TestParseAliasesAndCoercion(t *testing.T) {
	routes, err := Parse(context.Background(), "test", strings.NewReader(export))
	require.NoError(t, err)
	want := []model.Route{
		{ID: "r-1", RouteNumber: "101", School: "Lincoln", Tier: 1, BusNumber: "B-1", DriverName: "A. Lee", TotalStudents: 20, Capacity: 72, TotalMiles: 31.5, OnTimePct: 96, AvgRideTimeMinutes: 28, CostPerStudent: 1850, Status: model.RouteActive},
		{ID: "r-2", RouteNumber: "102", School: "Lincoln", Tier: 2, TotalStudents: 41, Capacity: 72, TotalMiles: 55.8, OnTimePct: 79, AvgRideTimeMinutes: 66, CostPerStudent: 1400, Status: model.RouteActive},
	}
	if diff := cmp.Diff(want, routes); diff != "" {
		t.Fatalf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]struct {
		in   string
		line int
	}{
		"missing column": {"id,route,tier,students\nr-1,1,1,5\n", 1},
		"bad integer":    {"id,route,tier,students,capacity\nr-1,1,1,five,10\n", 2},
		"bad tier":       {"id,route,tier,students,capacity\nr-1,1,1,5,10\nr-2,2,7,5,10\n", 3},
		"duplicate":      {"id,route,tier,students,capacity\nr-1,1,1,5,10\nr-1,2,1,5,10\n", 3},
		"unknown status": {"id,route,tier,students,capacity,status\nr-1,1,1,5,10,parked\n", 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(context.Background(), "test", strings.NewReader(tc.in))
			var re *integrations.RowError
			require.True(t, errors.As(err, &re), "err = %v", err)
			assert.Equal(t, tc.line, re.Line)
		})
	}
}

func TestParseEmptyAndCanceled(t *testing.T) {
	routes, err := Parse(context.Background(), "test", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, routes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Parse(ctx, "test", strings.NewReader(export))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapterFetchRoutes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "routes.csv")
	require.NoError(t, os.WriteFile(p, []byte(export), 0o600))
	var src integrations.RouteSource = Adapter{Path: p, DistrictID: "d_x"}
	b, err := src.FetchRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d_x", b.DistrictID)
	assert.Len(t, b.Routes, 2)
	assert.Equal(t, "csv-export", src.Name())
}
