// Package integrations defines adapters for external route-management systems
// that export district route snapshots.
package integrations

import (
	"context"
	"fmt"

	"schoolbus/internal/model"
)

// RouteSource is one external system the route data provider can ingest.
type RouteSource interface {
	Name() string
	FetchRoutes(ctx context.Context) (RouteBatch, error)
}

// RouteBatch is one export. DistrictID is empty when the export does not name one.
type RouteBatch struct {
	DistrictID string
	Routes     []model.Route
}

// RowError locates a malformed record in an export.
type RowError struct {
	Source string
	Line   int
	Err    error
}

func (e *RowError) Error() string { return fmt.Sprintf("%s line %d: %v", e.Source, e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }
