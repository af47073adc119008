package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"schoolbus/internal/config"
	"schoolbus/internal/engine"
	"schoolbus/internal/integrations/csvexport"
	"schoolbus/internal/model"
	"schoolbus/internal/store"
)

// routeFile is the on-disk fleet format. A bare list of routes is also accepted.
type routeFile struct {
	DistrictID string        `yaml:"districtId"`
	Routes     []model.Route `yaml:"routes"`
}

// parseRoutes decodes a JSON or YAML route file and validates every record.
func parseRoutes(r io.Reader) (string, []model.Route, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	var rf routeFile
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '-') {
		err = yaml.Unmarshal(b, &rf.Routes)
	} else {
		err = yaml.Unmarshal(b, &rf)
	}
	if err != nil {
		return "", nil, fmt.Errorf("parse routes: %w", err)
	}
	seen := make(map[string]bool, len(rf.Routes))
	for _, rt := range rf.Routes {
		if err := rt.Validate(); err != nil {
			return "", nil, err
		}
		if seen[rt.ID] {
			return "", nil, fmt.Errorf("route %s: duplicate id", rt.ID)
		}
		seen[rt.ID] = true
	}
	return rf.DistrictID, rf.Routes, nil
}

// loadRoutesFile reads a route file; .csv files are treated as route exports.
func loadRoutesFile(path string) (string, []model.Route, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		b, err := csvexport.Adapter{Path: path}.FetchRoutes(context.Background())
		if err != nil {
			return "", nil, err
		}
		return b.DistrictID, b.Routes, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = f.Close() }()
	return parseRoutes(f)
}

// openStore picks the route source: --routes, then --db, then the demo fleet.
func openStore() (store.Store, func() error, error) {
	nop := func() error { return nil }
	if routesFile != "" {
		d, routes, err := loadRoutesFile(routesFile)
		if err != nil {
			return nil, nil, err
		}
		if d != "" && !rootFlagChanged("district") {
			districtID = d
		}
		m := store.NewMemory()
		m.PutRoutes(districtID, routes)
		return m, nop, nil
	}
	if databaseURL != "" {
		pg, err := store.NewPostgres(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	m := store.NewMemory()
	m.SeedDemo()
	return m, nop, nil
}

func rootFlagChanged(name string) bool {
	f := rootCmd.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

// withService opens the route source and calibration, then runs fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *engine.Service) error) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	m, err := config.LoadModel(modelPath)
	if err != nil {
		return err
	}
	svc := engine.NewService(st, st, engine.ServiceOptions{
		Calibration:       m.For,
		ParallelThreshold: parallelThreshold,
		Workers:           workers,
		Logger:            logger,
	})
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return fn(ctx, svc)
}

// render writes v as indented JSON, or YAML converted from the JSON form so
// money fields keep their decimal string encoding.
func render(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch strings.ToLower(output) {
	case "", "json":
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml", "yml":
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
