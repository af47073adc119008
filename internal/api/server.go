package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolbus/internal/auth"
	"schoolbus/internal/config"
	"schoolbus/internal/engine"
	"schoolbus/internal/metrics"
	"schoolbus/internal/store"
)

type Server struct {
	Store    store.Store
	Service  *engine.Service
	Auth     *auth.Verifier
	Broker   EventBroker
	Limiter  *districtLimiter
	Log      *zap.Logger
	Settings config.Settings
	Model    *config.Model
}

// Deps are the collaborators NewServer wires together. Nil fields get
// in-process defaults: memory store, in-memory broker, stock calibration.
type Deps struct {
	Store  store.Store
	Broker EventBroker
	Model  *config.Model
	Logger *zap.Logger
	// Webhooks, when set, also receives every saved scenario.
	Webhooks engine.ScenarioPublisher
}

func NewServer(settings config.Settings, deps Deps) *Server {
	if deps.Store == nil {
		m := store.NewMemory()
		m.SeedDemo()
		deps.Store = m
	}
	if deps.Broker == nil {
		deps.Broker = NewBroker()
	}
	if deps.Model == nil {
		deps.Model = config.DefaultModel()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	pubs := publishers{ScenarioPublisher{Broker: deps.Broker}}
	if deps.Webhooks != nil {
		pubs = append(pubs, deps.Webhooks)
	}
	svc := engine.NewService(deps.Store, deps.Store, engine.ServiceOptions{
		Calibration:       deps.Model.For,
		ReadTimeout:       settings.ProviderReadTimeout,
		WriteTimeout:      settings.StoreWriteTimeout,
		PendingTTL:        settings.UnsavedScenarioTTL,
		ParallelThreshold: settings.ParallelThreshold,
		Publisher:         pubs,
		Logger:            deps.Logger.Named("engine"),
	})
	return &Server{
		Store:    deps.Store,
		Service:  svc,
		Auth:     auth.NewVerifier(settings.AuthMode, settings.AuthHMACSecret, settings.AuthDistrictClaim, settings.AuthRoleClaim),
		Broker:   deps.Broker,
		Limiter:  newDistrictLimiter(settings.RateRPS, settings.RateBurst),
		Log:      deps.Logger,
		Settings: settings,
		Model:    deps.Model,
	}
}

// OpenStore returns Postgres when DATABASE_URL is set, otherwise a seeded
// memory store. The returned close func is never nil.
func OpenStore(settings config.Settings, log *zap.Logger) (store.Store, func() error, error) {
	if settings.DatabaseURL == "" {
		log.Info("DATABASE_URL not set; using in-memory store with demo fleet", zap.String("district", store.DemoDistrict))
		m := store.NewMemory()
		m.SeedDemo()
		return m, func() error { return nil }, nil
	}
	pg, err := store.NewPostgres(settings.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if settings.Migrate {
		if err := pg.MigrateDir(settings.MigrationsDir); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	return pg, pg.Close, nil
}

// OpenBroker returns a Redis broker when REDIS_URL is set and reachable,
// otherwise the in-memory broker.
func OpenBroker(ctx context.Context, settings config.Settings, log *zap.Logger) EventBroker {
	if settings.RedisURL == "" {
		return NewBroker()
	}
	rb, err := NewRedisBroker(settings.RedisURL)
	if err == nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rb.Ping(pctx)
		cancel()
	}
	if err != nil {
		log.Warn("redis broker unavailable; falling back to in-memory", zap.Error(err))
		return NewBroker()
	}
	return rb
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler registers every route on a ServeMux behind logging and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(path string, h http.HandlerFunc) { mux.Handle(path, s.instrument(path, h)) }

	// Evaluation
	handle("/v1/routes/grades", s.RouteGradesHandler)
	handle("/v1/routes/inefficiencies", s.InefficienciesHandler)
	handle("/v1/fleet/summary", s.FleetSummaryHandler)
	handle("/v1/merge-simulations", s.MergeSimulationsHandler)

	// Scenarios
	handle("/v1/scenarios", s.ScenariosHandler)
	handle("/v1/scenarios/retry", s.ScenarioRetryHandler)
	handle("/v1/scenarios/ws", s.ScenarioWSHandler)
	handle("/v1/scenarios/", s.ScenarioByIDHandler)

	// Health and admin
	handle("/healthz", s.HealthHandler)
	handle("/readyz", s.ReadyHandler)
	handle("/debug/info", s.DebugHandler)
	handle("/openapi.yaml", s.OpenAPIHandler)
	handle("/openapi.json", s.OpenAPIHandler)
	handle("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler pings the store and broker when they support it.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	var errs []error
	if p, ok := s.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
