package model

import (
	"fmt"
	"strings"
)

// Core domain types shared by the engine, the stores and the API.

type RouteStatus string

const (
	RouteActive   RouteStatus = "active"
	RouteInactive RouteStatus = "inactive"
)

// Route is one bus's daily assignment as reported by the route data provider.
// This service never mutates routes.
type Route struct {
	ID                 string      `json:"id" yaml:"id"`
	DistrictID         string      `json:"districtId,omitempty" yaml:"districtId,omitempty"`
	RouteNumber        string      `json:"routeNumber" yaml:"routeNumber"`
	School             string      `json:"school" yaml:"school"`
	Tier               int         `json:"tier" yaml:"tier"`
	BusNumber          string      `json:"busNumber,omitempty" yaml:"busNumber,omitempty"`
	DriverName         string      `json:"driverName,omitempty" yaml:"driverName,omitempty"`
	TotalStudents      int         `json:"totalStudents" yaml:"totalStudents"`
	Capacity           int         `json:"capacity" yaml:"capacity"`
	TotalMiles         float64     `json:"totalMiles" yaml:"totalMiles"`
	OnTimePct          float64     `json:"onTimePct" yaml:"onTimePct"`
	AvgRideTimeMinutes float64     `json:"avgRideTimeMinutes" yaml:"avgRideTimeMinutes"`
	CostPerStudent     float64     `json:"costPerStudent" yaml:"costPerStudent"`
	Status             RouteStatus `json:"status" yaml:"status"`
}

// Active reports whether the route is in service.
func (r Route) Active() bool { return r.Status == RouteActive }

// Validate rejects records the engine cannot reason about. A zero capacity is
// allowed; utilization is defined as 0 in that case.
func (r Route) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("route: id is empty")
	}
	if r.Tier < 1 || r.Tier > 3 {
		return fmt.Errorf("route %s: tier %d outside 1..3", r.ID, r.Tier)
	}
	if r.Capacity < 0 {
		return fmt.Errorf("route %s: capacity %d is negative", r.ID, r.Capacity)
	}
	if r.TotalStudents < 0 {
		return fmt.Errorf("route %s: totalStudents %d is negative", r.ID, r.TotalStudents)
	}
	switch r.Status {
	case RouteActive, RouteInactive:
	default:
		return fmt.Errorf("route %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}

// RouteFilter narrows ListRoutes. Zero values match everything.
type RouteFilter struct {
	Status RouteStatus `json:"status,omitempty"`
	School string      `json:"school,omitempty"`
	Tier   int         `json:"tier,omitempty"`
	IDs    []string    `json:"ids,omitempty"`
}

// Match reports whether r passes the filter.
func (f RouteFilter) Match(r Route) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.School != "" && !strings.EqualFold(r.School, f.School) {
		return false
	}
	if f.Tier != 0 && r.Tier != f.Tier {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == r.ID {
				return true
			}
		}
		return false
	}
	return true
}
