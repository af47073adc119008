package api

import (
	"net/http"
	"time"

	"schoolbus/internal/buildinfo"
)

// DebugHandler reports build info and the non-secret parts of the running configuration.
func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.Settings
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                      cfg.Port,
			"AUTH_MODE":                 cfg.AuthMode,
			"RATE_RPS":                  cfg.RateRPS,
			"RATE_BURST":                cfg.RateBurst,
			"STORE_WRITE_TIMEOUT":       cfg.StoreWriteTimeout.String(),
			"PROVIDER_READ_TIMEOUT":     cfg.ProviderReadTimeout.String(),
			"UNSAVED_SCENARIO_TTL":      cfg.UnsavedScenarioTTL.String(),
			"PARALLEL_DETECT_THRESHOLD": cfg.ParallelThreshold,
			"MODEL_CONFIG":              cfg.ModelConfigPath,
			"CALIBRATED_DISTRICTS":      s.Model.Districts(),
			"HAS_DATABASE_URL":          cfg.DatabaseURL != "",
			"HAS_REDIS_URL":             cfg.RedisURL != "",
			"HAS_WEBHOOK_URL":           cfg.WebhookURL != "",
			"WEBHOOK_MAX_ATTEMPTS":      cfg.WebhookMaxAttempts,
		},
	})
}
