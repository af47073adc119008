// Package csvexport reads route snapshots from the CSV exports that district
// route-management systems produce.
package csvexport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"schoolbus/internal/integrations"
	"schoolbus/internal/model"
)

// Adapter parses a header-first CSV file. Column names are matched
// case-insensitively, ignoring spaces, dashes and underscores.
type Adapter struct {
	Path       string
	DistrictID string
}

func (a Adapter) Name() string { return "csv-export" }

func (a Adapter) FetchRoutes(ctx context.Context) (integrations.RouteBatch, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return integrations.RouteBatch{}, err
	}
	defer func() { _ = f.Close() }()
	routes, err := Parse(ctx, a.Name(), f)
	if err != nil {
		return integrations.RouteBatch{}, err
	}
	return integrations.RouteBatch{DistrictID: a.DistrictID, Routes: routes}, nil
}

var aliases = map[string]string{
	"id": "id", "routeid": "id",
	"routenumber": "routeNumber", "route": "routeNumber", "routeno": "routeNumber",
	"school": "school",
	"tier":   "tier",
	"busnumber": "busNumber", "bus": "busNumber",
	"drivername": "driverName", "driver": "driverName",
	"totalstudents": "totalStudents", "students": "totalStudents", "ridership": "totalStudents",
	"capacity": "capacity", "seats": "capacity",
	"totalmiles": "totalMiles", "miles": "totalMiles",
	"ontimepct": "onTimePct", "ontime": "onTimePct", "ontime%": "onTimePct",
	"avgridetimeminutes": "avgRideTimeMinutes", "avgridetime": "avgRideTimeMinutes", "ridetime": "avgRideTimeMinutes",
	"costperstudent": "costPerStudent",
	"status": "status",
}

var required = []string{"id", "routeNumber", "tier", "totalStudents", "capacity"}

func normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// Parse reads every row of r. Any malformed row fails the whole export
// with a RowError naming its line.
func Parse(ctx context.Context, source string, r io.Reader) ([]model.Route, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []model.Route{}, nil
	}
	if err != nil {
		return nil, &integrations.RowError{Source: source, Line: 1, Err: err}
	}
	cols := map[string]int{}
	for i, h := range header {
		if f, ok := aliases[normalize(h)]; ok {
			cols[f] = i
		}
	}
	for _, f := range required {
		if _, ok := cols[f]; !ok {
			return nil, &integrations.RowError{Source: source, Line: 1, Err: fmt.Errorf("missing column %s", f)}
		}
	}

	routes := []model.Route{}
	seen := map[string]bool{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return routes, nil
		}
		if err != nil {
			return nil, &integrations.RowError{Source: source, Line: line, Err: err}
		}
		rt, err := decodeRow(cols, rec)
		if err == nil {
			err = rt.Validate()
		}
		if err == nil && seen[rt.ID] {
			err = fmt.Errorf("duplicate route id %s", rt.ID)
		}
		if err != nil {
			return nil, &integrations.RowError{Source: source, Line: line, Err: err}
		}
		seen[rt.ID] = true
		routes = append(routes, rt)
	}
}

func decodeRow(cols map[string]int, rec []string) (model.Route, error) {
	get := func(f string) string {
		if i, ok := cols[f]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var (
		rt  model.Route
		err error
	)
	ints := func(f string, dst *int) {
		if err != nil || get(f) == "" {
			return
		}
		if *dst, err = strconv.Atoi(get(f)); err != nil {
			err = fmt.Errorf("%s: %q is not an integer", f, get(f))
		}
	}
	floats := func(f string, dst *float64) {
		if err != nil || get(f) == "" {
			return
		}
		v := strings.TrimSuffix(strings.TrimPrefix(get(f), "$"), "%")
		if *dst, err = strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err != nil {
			err = fmt.Errorf("%s: %q is not a number", f, get(f))
		}
	}
	rt.ID = get("id")
	rt.RouteNumber = get("routeNumber")
	rt.School = get("school")
	rt.BusNumber = get("busNumber")
	rt.DriverName = get("driverName")
	ints("tier", &rt.Tier)
	ints("totalStudents", &rt.TotalStudents)
	ints("capacity", &rt.Capacity)
	floats("totalMiles", &rt.TotalMiles)
	floats("onTimePct", &rt.OnTimePct)
	floats("avgRideTimeMinutes", &rt.AvgRideTimeMinutes)
	floats("costPerStudent", &rt.CostPerStudent)
	rt.Status = model.RouteStatus(strings.ToLower(get("status")))
	if rt.Status == "" {
		rt.Status = model.RouteActive
	}
	return rt, err
}
