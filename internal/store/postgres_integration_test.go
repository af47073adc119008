//go:build postgres_integration

package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"schoolbus/internal/model"
)

func openIntegration(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	return p
}

func TestPostgresRoutesAndScenarios(t *testing.T) {
	p := openIntegration(t)
	ctx := t.Context()
	district := "d_it_" + uuid.NewString()[:8]

	routes := []model.Route{
		{ID: district + "-1", RouteNumber: "1", School: "North", Tier: 1, TotalStudents: 20, Capacity: 72, Status: model.RouteActive},
		{ID: district + "-2", RouteNumber: "2", School: "North", Tier: 1, TotalStudents: 15, Capacity: 54, Status: model.RouteActive},
		{ID: district + "-3", RouteNumber: "3", School: "South", Tier: 2, Status: model.RouteInactive},
	}
	if err := p.PutRoutes(ctx, district, routes); err != nil {
		t.Fatalf("PutRoutes: %v", err)
	}
	active, err := p.ListActiveRoutes(ctx, district)
	if err != nil {
		t.Fatalf("ListActiveRoutes: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("want 2 active routes, got %d", len(active))
	}
	picked, err := p.ListRoutes(ctx, district, model.RouteFilter{IDs: []string{district + "-3"}})
	if err != nil || len(picked) != 1 || picked[0].Status != model.RouteInactive {
		t.Fatalf("ListRoutes by id: %v %#v", err, picked)
	}

	sc := model.Scenario{
		ID: uuid.NewString(), DistrictID: district, Name: "merge north", Type: model.ScenarioConsolidation,
		Parameters:       model.ConsolidationParams{TargetUtilizationPct: 65},
		Result:           model.ConsolidationPayload{UnderutilizedRoutes: []string{district + "-1", district + "-2"}, PotentialMerges: 1},
		EstimatedSavings: decimal.NewFromInt(85000), RoutesAffected: 2, StudentsAffected: 35,
		Status: model.ScenarioDraft, CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	saved, created, err := p.SaveScenario(ctx, sc)
	if err != nil || !created {
		t.Fatalf("SaveScenario: created=%v err=%v", created, err)
	}
	again, created, err := p.SaveScenario(ctx, sc)
	if err != nil || again.ID != saved.ID || created {
		t.Fatalf("SaveScenario retry: created=%v err=%v", created, err)
	}
	list, err := p.ListScenarios(ctx, district)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListScenarios: %v len=%d", err, len(list))
	}
	if !list[0].EstimatedSavings.Equal(sc.EstimatedSavings) {
		t.Fatalf("savings %s", list[0].EstimatedSavings)
	}
	if _, err := p.GetScenario(ctx, "other", sc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetScenario other district: %v", err)
	}
	other := sc
	other.DistrictID = "other"
	if _, _, err := p.SaveScenario(ctx, other); !errors.Is(err, ErrConflict) {
		t.Fatalf("SaveScenario cross district: %v", err)
	}
}
