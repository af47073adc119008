package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"schoolbus/internal/auth"
	"schoolbus/internal/engine"
	"schoolbus/internal/model"
	"schoolbus/internal/store"
)

const fleetYAML = `districtId: d_file
routes:
  - {id: a, routeNumber: "1", school: North, tier: 1, totalStudents: 20, capacity: 72, onTimePct: 95, avgRideTimeMinutes: 30, costPerStudent: 900, status: active}
  - {id: b, routeNumber: "2", school: North, tier: 2, totalStudents: 30, capacity: 72, onTimePct: 95, avgRideTimeMinutes: 30, costPerStudent: 900, status: active}
  - {id: c, routeNumber: "3", school: North, tier: 3, totalStudents: 70, capacity: 72, onTimePct: 95, avgRideTimeMinutes: 30, costPerStudent: 900, status: active}
  - {id: d, routeNumber: "4", school: North, tier: 3, totalStudents: 0, capacity: 0, status: inactive}
`

// setup resets package flags and returns a command writing into buf.
func setup(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	routesFile, databaseURL, modelPath, output = "", "", "", "json"
	districtID = store.DemoDistrict
	timeout = 5 * time.Second
	parallelThreshold, workers = 500, 0
	severityFilter = ""
	scenarioName, scenarioStatus = "", "draft"
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseRoutesFormats(t *testing.T) {
	d, routes, err := parseRoutes(strings.NewReader(fleetYAML))
	require.NoError(t, err)
	assert.Equal(t, "d_file", d)
	require.Len(t, routes, 4)
	assert.Equal(t, 72, routes[0].Capacity)

	d, routes, err = parseRoutes(strings.NewReader(`[{"id":"x","routeNumber":"9","school":"S","tier":2,"totalStudents":5,"capacity":10,"status":"active"}]`))
	require.NoError(t, err)
	assert.Empty(t, d)
	require.Len(t, routes, 1)
	assert.Equal(t, 2, routes[0].Tier)

	_, _, err = parseRoutes(strings.NewReader(`routes: [{id: x, tier: 4, status: active}]`))
	assert.Error(t, err)
	_, _, err = parseRoutes(strings.NewReader(`routes: [{id: x, tier: 1, status: active}, {id: x, tier: 1, status: active}]`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestGradeDemoFleet(t *testing.T) {
	cmd, buf := setup(t)
	require.NoError(t, runGrade(cmd, nil))
	var grades []engine.RouteGrade
	require.NoError(t, json.Unmarshal(buf.Bytes(), &grades))
	assert.Len(t, grades, 6)
}

func TestDetectSeverityFilter(t *testing.T) {
	cmd, buf := setup(t)
	severityFilter = "high"
	require.NoError(t, runDetect(cmd, nil))
	var findings []engine.InefficiencyFinding
	require.NoError(t, json.Unmarshal(buf.Bytes(), &findings))
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.Equal(t, engine.SeverityHigh, f.Severity)
	}

	severityFilter = "low"
	assert.Error(t, runDetect(cmd, nil))
}

func TestMergeFromFile(t *testing.T) {
	cmd, buf := setup(t)
	routesFile = writeFile(t, "fleet.yaml", fleetYAML)
	require.NoError(t, runMerge(cmd, []string{"a", "b"}))
	var out struct {
		Simulation struct {
			TotalStudents     int    `json:"totalStudents"`
			ResultingCapacity int    `json:"resultingCapacity"`
			RoutesEliminated  int    `json:"routesEliminated"`
			EstimatedSavings  string `json:"estimatedSavings"`
		} `json:"simulation"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Contains(t, buf.String(), `"warnings": []`)
	assert.NotNil(t, out.Warnings)
	assert.Equal(t, "d_file", districtID)
	assert.Equal(t, 50, out.Simulation.TotalStudents)
	assert.Equal(t, 72, out.Simulation.ResultingCapacity)
	assert.Equal(t, 1, out.Simulation.RoutesEliminated)
	assert.Equal(t, "85000", out.Simulation.EstimatedSavings)

	cmd, _ = setup(t)
	routesFile = writeFile(t, "fleet.yaml", fleetYAML)
	assert.Error(t, runMerge(cmd, []string{"a", "d"}), "inactive route")
}

func TestMergeOverCapacityWarnsOnStderr(t *testing.T) {
	cmd, buf := setup(t)
	var errBuf bytes.Buffer
	cmd.SetErr(&errBuf)
	routesFile = writeFile(t, "fleet.yaml", fleetYAML)
	require.NoError(t, runMerge(cmd, []string{"a", "c"}))

	var out struct {
		Simulation struct {
			OverCapacity bool `json:"overCapacity"`
		} `json:"simulation"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Simulation.OverCapacity)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "warning: "+out.Warnings[0]+"\n", errBuf.String())
	assert.Contains(t, errBuf.String(), "needs 90 seats")
}

func TestSummaryFromCSVExport(t *testing.T) {
	cmd, buf := setup(t)
	routesFile = writeFile(t, "fleet.csv", "id,route,school,tier,students,capacity,status\n"+
		"a,1,North,1,20,72,active\nb,2,North,2,70,72,active\nc,3,North,3,0,0,inactive\n")
	require.NoError(t, runSummary(cmd, nil))
	var rep struct {
		RouteCount int `json:"routeCount"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, 2, rep.RouteCount)
}

func TestConsolidationScenarioYAMLOutput(t *testing.T) {
	cmd, buf := setup(t)
	routesFile = writeFile(t, "fleet.yaml", fleetYAML)
	scenarioName = "spring"
	targetPct = 65
	output = "yaml"
	require.NoError(t, runScenario(cmd, model.ConsolidationParams{TargetUtilizationPct: 65}))
	var out struct {
		Persisted bool `yaml:"persisted"`
		Scenario  struct {
			DistrictID     string `yaml:"districtId"`
			RoutesAffected int    `yaml:"routesAffected"`
			Savings        string `yaml:"estimatedSavings"`
		} `yaml:"scenario"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Persisted)
	assert.Equal(t, "d_file", out.Scenario.DistrictID)
	assert.Equal(t, 2, out.Scenario.RoutesAffected)
}

func TestScenarioRejectsBadStatus(t *testing.T) {
	cmd, _ := setup(t)
	scenarioName = "x"
	scenarioStatus = "archived"
	assert.Error(t, runScenario(cmd, model.ConsolidationParams{TargetUtilizationPct: 65}))
}

func TestDatabaseCommandsNeedDSN(t *testing.T) {
	cmd, _ := setup(t)
	assert.ErrorIs(t, runMigrate(cmd, nil), errNoDatabase)
	p := writeFile(t, "fleet.yaml", fleetYAML)
	assert.ErrorIs(t, runImportRoutes(cmd, []string{p}), errNoDatabase)
}

func TestTokenVerifies(t *testing.T) {
	cmd, buf := setup(t)
	districtID = "d_north"
	tokenSecret, tokenRole, tokenUser, tokenTTL = "s3cret", "Planner", "u1", time.Minute
	require.NoError(t, runToken(cmd, nil))

	v := auth.NewVerifier("hmac", "s3cret", "", "")
	p, err := v.Verify(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{District: "d_north", Role: "planner", UserID: "u1"}, p)
}

func TestRenderUnknownFormat(t *testing.T) {
	_, _ = setup(t)
	output = "xml"
	assert.Error(t, render(&bytes.Buffer{}, map[string]int{"a": 1}))
}
