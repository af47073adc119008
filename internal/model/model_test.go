package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteValidate(t *testing.T) {
	ok := Route{ID: "r1", Tier: 2, Capacity: 0, Status: RouteActive}
	require.NoError(t, ok.Validate(), "zero capacity is allowed")

	bad := map[string]Route{
		"empty id":        {Tier: 1, Status: RouteActive},
		"tier 0":          {ID: "r", Tier: 0, Status: RouteActive},
		"tier 4":          {ID: "r", Tier: 4, Status: RouteActive},
		"negative cap":    {ID: "r", Tier: 1, Capacity: -1, Status: RouteActive},
		"negative riders": {ID: "r", Tier: 1, TotalStudents: -3, Status: RouteActive},
		"unknown status":  {ID: "r", Tier: 1, Status: "parked"},
	}
	for name, r := range bad {
		assert.Error(t, r.Validate(), name)
	}
}

func TestRouteFilterMatch(t *testing.T) {
	r := Route{ID: "r1", School: "Lincoln Elementary", Tier: 1, Status: RouteActive}
	assert.True(t, RouteFilter{}.Match(r))
	assert.True(t, RouteFilter{School: "lincoln elementary", Tier: 1, Status: RouteActive}.Match(r))
	assert.True(t, RouteFilter{IDs: []string{"x", "r1"}}.Match(r))
	assert.False(t, RouteFilter{IDs: []string{"x"}}.Match(r))
	assert.False(t, RouteFilter{Status: RouteInactive}.Match(r))
	assert.False(t, RouteFilter{Tier: 2}.Match(r))
	assert.False(t, RouteFilter{School: "Roosevelt"}.Match(r))
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, ConsolidationParams{TargetUtilizationPct: 100}.Validate())
	require.NoError(t, BellTimeShiftParams{ShiftMinutes: 1}.Validate())

	var ve *ValidationError
	for _, p := range []ScenarioParams{
		ConsolidationParams{TargetUtilizationPct: 0},
		ConsolidationParams{TargetUtilizationPct: 100.5},
		ConsolidationParams{TargetUtilizationPct: -10},
		BellTimeShiftParams{ShiftMinutes: 0},
	} {
		err := p.Validate()
		require.True(t, errors.As(err, &ve), "%T %+v", p, p)
	}
	assert.Equal(t, "shiftMinutes", ve.Field)
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams(ScenarioBellTimeShift, []byte(`{"shiftMinutes":20}`))
	require.NoError(t, err)
	assert.Equal(t, BellTimeShiftParams{ShiftMinutes: 20}, p)

	_, err = DecodeParams("carpool", []byte(`{}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "scenarioType", ve.Field)

	_, err = DecodeParams(ScenarioConsolidation, []byte(`{"targetUtilizationPct":"high"}`))
	assert.True(t, errors.As(err, &ve))
}

func sampleScenario() Scenario {
	return Scenario{
		ID:               "s1",
		DistrictID:       "d1",
		Name:             "spring",
		Type:             ScenarioConsolidation,
		Parameters:       ConsolidationParams{TargetUtilizationPct: 65},
		Result:           ConsolidationPayload{UnderutilizedRoutes: []string{"101", "102"}, PotentialMerges: 1},
		EstimatedSavings: decimal.NewFromInt(85000),
		RoutesAffected:   2,
		StudentsAffected: 35,
		Status:           ScenarioDraft,
		CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestScenarioJSONResolvesVariants(t *testing.T) {
	in := sampleScenario()
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Scenario
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Parameters, out.Parameters)
	assert.Equal(t, in.Result, out.Result)
	assert.True(t, in.EstimatedSavings.Equal(out.EstimatedSavings))
	require.NoError(t, out.Validate())

	bad := []byte(`{"id":"s","districtId":"d","name":"n","scenarioType":"teleport","parameters":{}}`)
	assert.Error(t, json.Unmarshal(bad, &out))
}

func TestScenarioValidate(t *testing.T) {
	require.NoError(t, sampleScenario().Validate())

	mismatched := sampleScenario()
	mismatched.Result = BellTimeShiftPayload{ShiftMinutes: 10}
	assert.Error(t, mismatched.Validate())

	noID := sampleScenario()
	noID.ID = " "
	assert.Error(t, noID.Validate())

	badStatus := sampleScenario()
	badStatus.Status = "archived"
	assert.Error(t, badStatus.Validate())

	badParams := sampleScenario()
	badParams.Parameters = ConsolidationParams{TargetUtilizationPct: 0}
	assert.Error(t, badParams.Validate())
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("conn reset")
	assert.ErrorIs(t, &DataAccessError{Op: "list", Err: cause}, cause)
	assert.ErrorIs(t, &StorageError{Op: "save", Err: cause}, cause)
	assert.Equal(t, "validation: name: required", Invalid("name", "required").Error())
	assert.Equal(t, "validation: bad", (&ValidationError{Reason: "bad"}).Error())
}
