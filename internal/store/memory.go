package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"schoolbus/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	routes    map[string][]model.Route  // districtId -> routes in provider order
	scenarios map[string]model.Scenario // scenarioId -> scenario
	byDist    map[string][]string       // districtId -> scenario ids
}

func NewMemory() *Memory {
	return &Memory{
		routes:    map[string][]model.Route{},
		scenarios: map[string]model.Scenario{},
		byDist:    map[string][]string{},
	}
}

// PutRoutes replaces a district's route snapshot. It stands in for the
// external route-management workflow in local runs and tests.
func (m *Memory) PutRoutes(districtID string, routes []model.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.Route, len(routes))
	for i, r := range routes {
		if r.DistrictID == "" {
			r.DistrictID = districtID
		}
		cp[i] = r
	}
	m.routes[districtID] = cp
}

func (m *Memory) ListActiveRoutes(ctx context.Context, districtID string) ([]model.Route, error) {
	return m.ListRoutes(ctx, districtID, model.RouteFilter{Status: model.RouteActive})
}

func (m *Memory) ListRoutes(ctx context.Context, districtID string, filter model.RouteFilter) ([]model.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Route{}
	for _, r := range m.routes[districtID] {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) SaveScenario(ctx context.Context, sc model.Scenario) (model.Scenario, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Scenario{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.scenarios[sc.ID]; ok {
		if prev.DistrictID != sc.DistrictID {
			return model.Scenario{}, false, fmt.Errorf("save scenario %s: %w", sc.ID, ErrConflict)
		}
		return prev, false, nil
	}
	m.scenarios[sc.ID] = sc
	m.byDist[sc.DistrictID] = append(m.byDist[sc.DistrictID], sc.ID)
	return sc, true, nil
}

func (m *Memory) ListScenarios(ctx context.Context, districtID string) ([]model.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Scenario, 0, len(m.byDist[districtID]))
	for _, id := range m.byDist[districtID] {
		out = append(out, m.scenarios[id])
	}
	slices.SortStableFunc(out, func(a, b model.Scenario) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) GetScenario(ctx context.Context, districtID, id string) (model.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenarios[id]
	if !ok || sc.DistrictID != districtID {
		return model.Scenario{}, ErrNotFound
	}
	return sc, nil
}

// DemoDistrict is the district seeded by SeedDemo.
const DemoDistrict = "d_demo"

// SeedDemo loads a small mixed fleet for local runs.
func (m *Memory) SeedDemo() {
	m.PutRoutes(DemoDistrict, []model.Route{
		{ID: "r-101", RouteNumber: "101", School: "Lincoln Elementary", Tier: 1, BusNumber: "B-12", DriverName: "M. Alvarez", TotalStudents: 20, Capacity: 72, TotalMiles: 31.5, OnTimePct: 96, AvgRideTimeMinutes: 28, CostPerStudent: 1850, Status: model.RouteActive},
		{ID: "r-102", RouteNumber: "102", School: "Lincoln Elementary", Tier: 1, BusNumber: "B-07", DriverName: "J. Chen", TotalStudents: 15, Capacity: 54, TotalMiles: 22.0, OnTimePct: 91, AvgRideTimeMinutes: 24, CostPerStudent: 2400, Status: model.RouteActive},
		{ID: "r-201", RouteNumber: "201", School: "Roosevelt Middle", Tier: 2, BusNumber: "B-12", DriverName: "M. Alvarez", TotalStudents: 60, Capacity: 72, TotalMiles: 40.2, OnTimePct: 88, AvgRideTimeMinutes: 42, CostPerStudent: 950, Status: model.RouteActive},
		{ID: "r-202", RouteNumber: "202", School: "Roosevelt Middle", Tier: 2, BusNumber: "B-21", DriverName: "T. Okafor", TotalStudents: 41, Capacity: 72, TotalMiles: 55.8, OnTimePct: 79, AvgRideTimeMinutes: 66, CostPerStudent: 1400, Status: model.RouteActive},
		{ID: "r-301", RouteNumber: "301", School: "Jefferson High", Tier: 3, BusNumber: "B-07", DriverName: "J. Chen", TotalStudents: 66, Capacity: 72, TotalMiles: 38.4, OnTimePct: 93, AvgRideTimeMinutes: 35, CostPerStudent: 870, Status: model.RouteActive},
		{ID: "r-302", RouteNumber: "302", School: "Jefferson High", Tier: 3, BusNumber: "B-30", DriverName: "R. Patel", TotalStudents: 33, Capacity: 54, TotalMiles: 47.1, OnTimePct: 84, AvgRideTimeMinutes: 51, CostPerStudent: 1650, Status: model.RouteActive},
		{ID: "r-401", RouteNumber: "401", School: "Jefferson High", Tier: 3, BusNumber: "B-44", DriverName: "", TotalStudents: 0, Capacity: 0, TotalMiles: 0, OnTimePct: 100, AvgRideTimeMinutes: 0, CostPerStudent: 0, Status: model.RouteInactive},
	})
}
