package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolbus/internal/metrics"
	"schoolbus/internal/model"
)

// RouteProvider supplies the current route snapshot for a district.
type RouteProvider interface {
	ListActiveRoutes(ctx context.Context, districtID string) ([]model.Route, error)
	ListRoutes(ctx context.Context, districtID string, filter model.RouteFilter) ([]model.Route, error)
}

// ScenarioStore persists scenario runs. SaveScenario must be idempotent on Scenario.ID.
type ScenarioStore interface {
	SaveScenario(ctx context.Context, sc model.Scenario) (saved model.Scenario, created bool, err error)
	ListScenarios(ctx context.Context, districtID string) ([]model.Scenario, error)
	GetScenario(ctx context.Context, districtID, id string) (model.Scenario, error)
}

// ScenarioPublisher announces saved scenarios. Failures are logged, never returned.
type ScenarioPublisher interface {
	PublishScenario(ctx context.Context, sc model.Scenario) error
}

type ServiceOptions struct {
	// Calibration returns the model config for a district. Defaults to DefaultConfig.
	Calibration func(districtID string) Config
	// ReadTimeout bounds one route snapshot read.
	ReadTimeout time.Duration
	// WriteTimeout bounds one scenario write.
	WriteTimeout time.Duration
	// PendingTTL is how long an unsaved scenario stays available to RetryScenario.
	PendingTTL time.Duration
	// ParallelThreshold is the fleet size from which detection runs on Workers goroutines.
	ParallelThreshold int
	Workers           int
	Publisher         ScenarioPublisher
	Logger            *zap.Logger
	Now               func() time.Time
	NewID             func() string
}

// Service runs the engine against live route data and persists scenario runs.
// It holds no per-call state; every call reads a fresh snapshot.
type Service struct {
	routes    RouteProvider
	scenarios ScenarioStore
	pending   *pendingScenarios
	opts      ServiceOptions
}

func NewService(routes RouteProvider, scenarios ScenarioStore, opts ServiceOptions) *Service {
	if opts.Calibration == nil {
		opts.Calibration = func(string) Config { return DefaultConfig() }
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = time.Hour
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Service{
		routes:    routes,
		scenarios: scenarios,
		pending:   newPendingScenarios(opts.PendingTTL, opts.Now),
		opts:      opts,
	}
}

// Engine returns an engine calibrated for the district.
func (s *Service) Engine(districtID string) *Engine {
	return New(s.opts.Calibration(districtID))
}

func (s *Service) activeRoutes(ctx context.Context, districtID string) ([]model.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()
	routes, err := s.routes.ListActiveRoutes(ctx, districtID)
	if err != nil {
		return nil, &model.DataAccessError{Op: "list active routes", Err: err}
	}
	return checkSnapshot(routes, "list active routes")
}

// checkSnapshot rejects the whole snapshot when any record is malformed.
func checkSnapshot(routes []model.Route, op string) ([]model.Route, error) {
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, &model.DataAccessError{Op: op, Err: err}
		}
	}
	return routes, nil
}

func (s *Service) detect(ctx context.Context, eng *Engine, routes []model.Route) ([]InefficiencyFinding, error) {
	var (
		findings []InefficiencyFinding
		err      error
	)
	if len(routes) >= s.opts.ParallelThreshold {
		findings, err = eng.DetectInefficienciesParallel(ctx, routes, s.opts.Workers)
		if err != nil {
			return nil, err
		}
	} else {
		findings = eng.DetectInefficiencies(routes)
	}
	for _, f := range findings {
		metrics.Findings.WithLabelValues(string(f.Type), string(f.Severity)).Inc()
	}
	return findings, nil
}

// GradeRoutes grades every active route of a district.
func (s *Service) GradeRoutes(ctx context.Context, districtID string) ([]RouteGrade, error) {
	routes, err := s.activeRoutes(ctx, districtID)
	if err != nil {
		return nil, err
	}
	return s.Engine(districtID).GradeRoutes(routes), nil
}

// DetectInefficiencies ranks findings over a district's active routes.
func (s *Service) DetectInefficiencies(ctx context.Context, districtID string) ([]InefficiencyFinding, error) {
	routes, err := s.activeRoutes(ctx, districtID)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, s.Engine(districtID), routes)
}

// Evaluate grades and scans a district's active fleet in one pass.
func (s *Service) Evaluate(ctx context.Context, districtID string) (FleetReport, error) {
	routes, err := s.activeRoutes(ctx, districtID)
	if err != nil {
		return FleetReport{}, err
	}
	eng := s.Engine(districtID)
	findings, err := s.detect(ctx, eng, routes)
	if err != nil {
		return FleetReport{}, err
	}
	return eng.Summarize(districtID, routes, findings), nil
}

// SimulateMerge loads the selected routes and simulates folding them into one.
// Route ids that do not resolve to an active route are a ValidationError.
func (s *Service) SimulateMerge(ctx context.Context, districtID string, routeIDs []string) (MergeSimulation, error) {
	ids := make([]string, 0, len(routeIDs))
	seen := map[string]struct{}{}
	for _, id := range routeIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return MergeSimulation{}, model.Invalid("routeIds", "route %s selected more than once", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return MergeSimulation{}, model.Invalid("routeIds", "a merge needs at least 2 routes, got %d", len(ids))
	}

	rctx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()
	found, err := s.routes.ListRoutes(rctx, districtID, model.RouteFilter{IDs: ids})
	if err != nil {
		return MergeSimulation{}, &model.DataAccessError{Op: "list routes", Err: err}
	}
	if _, err := checkSnapshot(found, "list routes"); err != nil {
		return MergeSimulation{}, err
	}

	byID := make(map[string]model.Route, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	selected := make([]model.Route, 0, len(ids))
	var missing []string
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if !r.Active() {
			return MergeSimulation{}, model.Invalid("routeIds", "route %s is inactive", id)
		}
		selected = append(selected, r)
	}
	if len(missing) > 0 {
		return MergeSimulation{}, model.Invalid("routeIds", "unknown routes: %s", strings.Join(missing, ", "))
	}
	return s.Engine(districtID).SimulateMerge(selected)
}

// ScenarioRequest names a scenario run for one district.
type ScenarioRequest struct {
	DistrictID string
	Name       string
	CreatedBy  string
	Status     model.ScenarioStatus
	Params     model.ScenarioParams
}

// ScenarioOutcome carries the computed result whether or not it was persisted.
// When Persisted is false, Scenario is the unsaved record and StorageErr says why;
// the record is held for RetryScenario until PendingTTL elapses.
type ScenarioOutcome struct {
	Result     ScenarioResult
	Scenario   model.Scenario
	Persisted  bool
	StorageErr error
}

// RunScenario computes a scenario over a fresh snapshot and persists it.
// Validation and data access failures are returned as errors. A storage
// failure is reported in the outcome, next to the computed result.
func (s *Service) RunScenario(ctx context.Context, req ScenarioRequest) (ScenarioOutcome, error) {
	if strings.TrimSpace(req.DistrictID) == "" {
		return ScenarioOutcome{}, model.Invalid("districtId", "required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return ScenarioOutcome{}, model.Invalid("name", "required")
	}
	if req.Status == "" {
		req.Status = model.ScenarioDraft
	}
	if req.Status != model.ScenarioDraft && req.Status != model.ScenarioActive {
		return ScenarioOutcome{}, model.Invalid("status", "unknown status %q", req.Status)
	}
	if req.Params == nil {
		return ScenarioOutcome{}, model.Invalid("parameters", "required")
	}
	typ := string(req.Params.Type())
	if err := req.Params.Validate(); err != nil {
		metrics.ScenarioRuns.WithLabelValues(typ, "invalid").Inc()
		return ScenarioOutcome{}, err
	}

	routes, err := s.activeRoutes(ctx, req.DistrictID)
	if err != nil {
		metrics.ScenarioRuns.WithLabelValues(typ, "data_error").Inc()
		return ScenarioOutcome{}, err
	}
	res, err := s.Engine(req.DistrictID).RunScenario(routes, req.Params)
	if err != nil {
		metrics.ScenarioRuns.WithLabelValues(typ, "invalid").Inc()
		return ScenarioOutcome{}, err
	}
	metrics.ScenarioSavings.WithLabelValues(typ).Observe(res.EstimatedSavings.InexactFloat64())

	out := ScenarioOutcome{
		Result: res,
		Scenario: model.Scenario{
			ID:               s.opts.NewID(),
			DistrictID:       req.DistrictID,
			Name:             strings.TrimSpace(req.Name),
			Type:             res.Type,
			Parameters:       res.Parameters,
			Result:           res.Payload,
			EstimatedSavings: res.EstimatedSavings,
			RoutesAffected:   res.RoutesAffected,
			StudentsAffected: res.StudentsAffected,
			Status:           req.Status,
			CreatedBy:        req.CreatedBy,
			CreatedAt:        s.opts.Now().UTC(),
		},
	}

	saved, err := s.PersistScenario(ctx, out.Scenario)
	if err != nil {
		metrics.ScenarioRuns.WithLabelValues(typ, "unsaved").Inc()
		s.pending.put(out.Scenario)
		out.StorageErr = err
		return out, nil
	}
	metrics.ScenarioRuns.WithLabelValues(typ, "saved").Inc()
	out.Scenario = saved
	out.Persisted = true
	s.opts.Logger.Info("scenario saved",
		zap.String("district", saved.DistrictID),
		zap.String("scenario", saved.ID),
		zap.String("type", typ),
		zap.String("savings", saved.EstimatedSavings.String()),
		zap.Int("routesAffected", saved.RoutesAffected),
	)
	return out, nil
}

// PersistScenario writes a computed scenario under the write timeout. The
// created event is published only when the write inserted a new record.
func (s *Service) PersistScenario(ctx context.Context, sc model.Scenario) (model.Scenario, error) {
	if err := sc.Validate(); err != nil {
		return model.Scenario{}, err
	}
	wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	saved, created, err := s.scenarios.SaveScenario(wctx, sc)
	if err != nil {
		metrics.StoreFailures.Inc()
		s.opts.Logger.Warn("scenario not persisted",
			zap.String("district", sc.DistrictID),
			zap.String("scenario", sc.ID),
			zap.Error(err),
		)
		return model.Scenario{}, &model.StorageError{Op: "save scenario", Err: err}
	}
	if created && s.opts.Publisher != nil {
		if perr := s.opts.Publisher.PublishScenario(ctx, saved); perr != nil {
			s.opts.Logger.Warn("scenario event not published", zap.String("scenario", saved.ID), zap.Error(perr))
		}
	}
	return saved, nil
}

// RetryScenario persists an unsaved outcome held from an earlier RunScenario.
// Only the server's own record is written. An id that was already saved
// returns the stored record; any other id fails with the store's lookup error.
func (s *Service) RetryScenario(ctx context.Context, districtID, id string) (model.Scenario, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Scenario{}, model.Invalid("id", "required")
	}
	sc, ok := s.pending.get(districtID, id)
	if !ok {
		return s.GetScenario(ctx, districtID, id)
	}
	saved, err := s.PersistScenario(ctx, sc)
	if err != nil {
		return model.Scenario{}, err
	}
	s.pending.drop(id)
	s.opts.Logger.Info("scenario saved on retry",
		zap.String("district", saved.DistrictID),
		zap.String("scenario", saved.ID),
	)
	return saved, nil
}

// ListScenarios returns a district's saved scenarios, newest first.
func (s *Service) ListScenarios(ctx context.Context, districtID string) ([]model.Scenario, error) {
	items, err := s.scenarios.ListScenarios(ctx, districtID)
	if err != nil {
		return nil, &model.StorageError{Op: "list scenarios", Err: err}
	}
	return items, nil
}

// GetScenario returns one saved scenario. A missing record keeps the store's
// not-found error in its chain.
func (s *Service) GetScenario(ctx context.Context, districtID, id string) (model.Scenario, error) {
	sc, err := s.scenarios.GetScenario(ctx, districtID, id)
	if err != nil {
		return model.Scenario{}, &model.StorageError{Op: "get scenario", Err: err}
	}
	return sc, nil
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	var v *model.ValidationError
	return errors.As(err, &v)
}

// IsDataAccess reports whether err came from the route data provider.
func IsDataAccess(err error) bool {
	var d *model.DataAccessError
	return errors.As(err, &d)
}

// IsStorage reports whether err came from the scenario store.
func IsStorage(err error) bool {
	var st *model.StorageError
	return errors.As(err, &st)
}
