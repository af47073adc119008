package store

import (
	"context"
	"errors"

	"schoolbus/internal/model"
)

// Store is the persistence interface used by the API server. It is both the
// route data provider and the scenario store.
type Store interface {
	// Routes (read only)
	ListActiveRoutes(ctx context.Context, districtID string) ([]model.Route, error)
	ListRoutes(ctx context.Context, districtID string, filter model.RouteFilter) ([]model.Route, error)

	// Scenarios. SaveScenario is idempotent on ID: saving an existing record
	// returns the stored copy unchanged and created=false.
	SaveScenario(ctx context.Context, sc model.Scenario) (saved model.Scenario, created bool, err error)
	ListScenarios(ctx context.Context, districtID string) ([]model.Scenario, error)
	GetScenario(ctx context.Context, districtID, id string) (model.Scenario, error)
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a scenario id is already taken by another district.
	ErrConflict = errors.New("conflict")
)
