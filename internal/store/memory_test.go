package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"schoolbus/internal/model"
)

func routeIDs(rs []model.Route) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestMemoryListActiveRoutes(t *testing.T) {
	m := NewMemory()
	m.SeedDemo()
	got, err := m.ListActiveRoutes(context.Background(), DemoDistrict)
	if err != nil {
		t.Fatalf("ListActiveRoutes: %v", err)
	}
	want := []string{"r-101", "r-102", "r-201", "r-202", "r-301", "r-302"}
	if diff := cmp.Diff(want, routeIDs(got)); diff != "" {
		t.Fatalf("active routes (-want +got):\n%s", diff)
	}
	for _, r := range got {
		if r.DistrictID != DemoDistrict {
			t.Fatalf("district not stamped on %s", r.ID)
		}
	}
}

func TestMemoryListRoutesFilter(t *testing.T) {
	m := NewMemory()
	m.SeedDemo()
	ctx := context.Background()
	got, err := m.ListRoutes(ctx, DemoDistrict, model.RouteFilter{School: "jefferson high"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"r-301", "r-302", "r-401"}, routeIDs(got)); diff != "" {
		t.Fatalf("school filter (-want +got):\n%s", diff)
	}
	got, _ = m.ListRoutes(ctx, DemoDistrict, model.RouteFilter{IDs: []string{"r-202", "r-101"}})
	if diff := cmp.Diff([]string{"r-101", "r-202"}, routeIDs(got)); diff != "" {
		t.Fatalf("id filter (-want +got):\n%s", diff)
	}
	got, _ = m.ListRoutes(ctx, "unknown", model.RouteFilter{})
	if got == nil || len(got) != 0 {
		t.Fatalf("unknown district should give empty non-nil slice, got %#v", got)
	}
}

func TestMemoryListRoutesCanceled(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.ListRoutes(ctx, DemoDistrict, model.RouteFilter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func demoScenario(id, district string, at time.Time) model.Scenario {
	return model.Scenario{
		ID: id, DistrictID: district, Name: "shift " + id, Type: model.ScenarioBellTimeShift,
		Parameters: model.BellTimeShiftParams{ShiftMinutes: 15},
		Result:     model.BellTimeShiftPayload{ShiftMinutes: 15, RoutesRetiered: 1},
		Status:     model.ScenarioDraft, CreatedAt: at,
	}
}

func TestMemorySaveScenarioIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	first, created, err := m.SaveScenario(ctx, demoScenario("s1", "d1", at))
	if err != nil || !created {
		t.Fatalf("SaveScenario: created=%v err=%v", created, err)
	}
	retry := demoScenario("s1", "d1", at.Add(time.Hour))
	retry.Name = "renamed"
	got, created, err := m.SaveScenario(ctx, retry)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if created {
		t.Fatalf("retry reported a new insert")
	}
	if got.Name != first.Name || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("retry overwrote stored record: %#v", got)
	}
	list, _ := m.ListScenarios(ctx, "d1")
	if len(list) != 1 {
		t.Fatalf("want 1 scenario, got %d", len(list))
	}
	if _, _, err := m.SaveScenario(ctx, demoScenario("s1", "d2", at)); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestMemoryListScenariosNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, sc := range []model.Scenario{
		demoScenario("b", "d1", at),
		demoScenario("c", "d1", at.Add(time.Minute)),
		demoScenario("a", "d1", at),
		demoScenario("z", "d2", at.Add(time.Hour)),
	} {
		if _, _, err := m.SaveScenario(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}
	list, err := m.ListScenarios(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, sc := range list {
		ids = append(ids, sc.ID)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, ids); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestMemoryGetScenarioScopedByDistrict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, _, err := m.SaveScenario(ctx, demoScenario("s1", "d1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetScenario(ctx, "d1", "s1"); err != nil {
		t.Fatalf("GetScenario: %v", err)
	}
	if _, err := m.GetScenario(ctx, "d2", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := m.GetScenario(ctx, "d1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
