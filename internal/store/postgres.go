package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"schoolbus/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open postgres: verify connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every *.sql file in dir, in name order, that is not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func (p *Postgres) MigrateDir(dir string) error {
	ctx := context.Background()
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		name := filepath.Base(f)
		var seen int
		if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations WHERE name=$1`, name).Scan(&seen); err != nil {
			return fmt.Errorf("migrate %s: check applied: %w", name, err)
		}
		if seen > 0 {
			continue
		}
		body, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("migrate %s: read: %w", name, err)
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate %s: begin: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate %s: exec: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate %s: record: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate %s: commit: %w", name, err)
		}
	}
	return nil
}

func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("migrate: list %q: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

const routeColumns = `id, district_id, route_number, school, tier, bus_number, driver_name, total_students, capacity, total_miles, on_time_pct, avg_ride_time_minutes, cost_per_student, status`

// routeQuery builds the ListRoutes statement. Every filter value stays a bind parameter.
func routeQuery(districtID string, f model.RouteFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + routeColumns + ` FROM routes WHERE district_id=$1`)
	args := []any{districtID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		b.WriteString(` AND status=` + next(string(f.Status)))
	}
	if f.School != "" {
		b.WriteString(` AND lower(school)=lower(` + next(f.School) + `)`)
	}
	if f.Tier != 0 {
		b.WriteString(` AND tier=` + next(f.Tier))
	}
	if len(f.IDs) > 0 {
		b.WriteString(` AND id = ANY(` + next(f.IDs) + `::text[])`)
	}
	b.WriteString(` ORDER BY tier, route_number, id`)
	return b.String(), args
}

func (p *Postgres) ListActiveRoutes(ctx context.Context, districtID string) ([]model.Route, error) {
	return p.ListRoutes(ctx, districtID, model.RouteFilter{Status: model.RouteActive})
}

func (p *Postgres) ListRoutes(ctx context.Context, districtID string, filter model.RouteFilter) ([]model.Route, error) {
	q, args := routeQuery(districtID, filter)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list routes: query: %w", err)
	}
	defer rows.Close()

	out := []model.Route{}
	for rows.Next() {
		var r model.Route
		var bus, driver sql.NullString
		var status string
		if err := rows.Scan(&r.ID, &r.DistrictID, &r.RouteNumber, &r.School, &r.Tier, &bus, &driver,
			&r.TotalStudents, &r.Capacity, &r.TotalMiles, &r.OnTimePct, &r.AvgRideTimeMinutes, &r.CostPerStudent, &status); err != nil {
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		r.BusNumber = bus.String
		r.DriverName = driver.String
		r.Status = model.RouteStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}
	return out, nil
}

const scenarioColumns = `id, district_id, name, scenario_type, parameters, result, estimated_savings, routes_affected, students_affected, status, created_by, created_at`

// scenarioArgs flattens a scenario into insert arguments, in scenarioColumns order.
func scenarioArgs(sc model.Scenario) ([]any, error) {
	params, err := json.Marshal(sc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	result, err := json.Marshal(sc.Result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return []any{
		sc.ID, sc.DistrictID, sc.Name, string(sc.Type), string(params), string(result),
		sc.EstimatedSavings.StringFixed(2), sc.RoutesAffected, sc.StudentsAffected,
		string(sc.Status), nullIfEmpty(sc.CreatedBy), sc.CreatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (model.Scenario, error) {
	var sc model.Scenario
	var typ, status string
	var params, result []byte
	var createdBy sql.NullString
	if err := row.Scan(&sc.ID, &sc.DistrictID, &sc.Name, &typ, &params, &result, &sc.EstimatedSavings,
		&sc.RoutesAffected, &sc.StudentsAffected, &status, &createdBy, &sc.CreatedAt); err != nil {
		return model.Scenario{}, err
	}
	return decodeScenario(sc, typ, status, params, result, createdBy.String)
}

func decodeScenario(sc model.Scenario, typ, status string, params, result []byte, createdBy string) (model.Scenario, error) {
	sc.Type = model.ScenarioType(typ)
	sc.Status = model.ScenarioStatus(status)
	sc.CreatedBy = createdBy
	p, err := model.DecodeParams(sc.Type, params)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	r, err := model.DecodePayload(sc.Type, result)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	sc.Parameters = p
	sc.Result = r
	return sc, nil
}

// SaveScenario inserts the record in one statement. A repeated id for the
// same district returns the stored row with created=false; it is never overwritten.
func (p *Postgres) SaveScenario(ctx context.Context, sc model.Scenario) (model.Scenario, bool, error) {
	args, err := scenarioArgs(sc)
	if err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: %w", err)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO scenarios (`+scenarioColumns+`)
		VALUES ($1,$2,$3,$4,$5::jsonb,$6::jsonb,$7::numeric,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`, args...)
	if err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: rows affected: %w", err)
	}
	stored, err := scanScenario(tx.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id=$1`, sc.ID))
	if err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: read back: %w", err)
	}
	if stored.DistrictID != sc.DistrictID {
		return model.Scenario{}, false, fmt.Errorf("save scenario %s: %w", sc.ID, ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return model.Scenario{}, false, fmt.Errorf("save scenario: commit: %w", err)
	}
	return stored, n == 1, nil
}

func (p *Postgres) ListScenarios(ctx context.Context, districtID string) ([]model.Scenario, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE district_id=$1 ORDER BY created_at DESC, id`, districtID)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: query: %w", err)
	}
	defer rows.Close()
	out := []model.Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenarios: row iteration: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetScenario(ctx context.Context, districtID, id string) (model.Scenario, error) {
	sc, err := scanScenario(p.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE district_id=$1 AND id=$2`, districtID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Scenario{}, ErrNotFound
		}
		return model.Scenario{}, fmt.Errorf("get scenario: %w", err)
	}
	return sc, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PutRoutes upserts a district's route snapshot. Routes absent from the
// snapshot are left untouched.
func (p *Postgres) PutRoutes(ctx context.Context, districtID string, routes []model.Route) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put routes: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range routes {
		if r.DistrictID == "" {
			r.DistrictID = districtID
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("put routes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO routes (`+routeColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (id) DO UPDATE SET
				route_number=EXCLUDED.route_number, school=EXCLUDED.school, tier=EXCLUDED.tier,
				bus_number=EXCLUDED.bus_number, driver_name=EXCLUDED.driver_name,
				total_students=EXCLUDED.total_students, capacity=EXCLUDED.capacity,
				total_miles=EXCLUDED.total_miles, on_time_pct=EXCLUDED.on_time_pct,
				avg_ride_time_minutes=EXCLUDED.avg_ride_time_minutes,
				cost_per_student=EXCLUDED.cost_per_student, status=EXCLUDED.status
			WHERE routes.district_id=EXCLUDED.district_id`,
			r.ID, r.DistrictID, r.RouteNumber, r.School, r.Tier, nullIfEmpty(r.BusNumber), nullIfEmpty(r.DriverName),
			r.TotalStudents, r.Capacity, r.TotalMiles, r.OnTimePct, r.AvgRideTimeMinutes, r.CostPerStudent, string(r.Status)); err != nil {
			return fmt.Errorf("put routes: upsert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put routes: commit: %w", err)
	}
	return nil
}
