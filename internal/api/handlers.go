package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"schoolbus/internal/engine"
	"schoolbus/internal/model"
)

// begin resolves the principal, applies the district rate limit and checks the method.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, method string) (Principal, bool) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return Principal{}, false
	}
	p, ok := s.authenticate(w, r)
	if !ok || !s.limit(w, r, p) {
		return Principal{}, false
	}
	return p, true
}

// RouteGradesHandler handles GET /v1/routes/grades
func (s *Server) RouteGradesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	items, err := s.Service.GradeRoutes(r.Context(), p.District)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"districtId": p.District, "items": items})
}

// InefficienciesHandler handles GET /v1/routes/inefficiencies
func (s *Server) InefficienciesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	items, err := s.Service.DetectInefficiencies(r.Context(), p.District)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sev := engine.Severity(strings.ToLower(r.URL.Query().Get("severity"))); sev != "" {
		filtered := make([]engine.InefficiencyFinding, 0, len(items))
		for _, f := range items {
			if f.Severity == sev {
				filtered = append(filtered, f)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"districtId": p.District, "items": items})
}

// FleetSummaryHandler handles GET /v1/fleet/summary
func (s *Server) FleetSummaryHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	rep, err := s.Service.Evaluate(r.Context(), p.District)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// MergeSimulationsHandler handles POST /v1/merge-simulations
func (s *Server) MergeSimulationsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sim, err := s.Service.SimulateMerge(r.Context(), p.District, req.RouteIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	warnings := sim.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"simulation": sim, "warnings": warnings})
}

type scenarioResponse struct {
	Scenario  model.Scenario `json:"scenario"`
	Persisted bool           `json:"persisted"`
	Warnings  []string       `json:"warnings"`
}

// ScenariosHandler handles POST/GET /v1/scenarios
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p, ok := s.begin(w, r, http.MethodPost)
		if !ok {
			return
		}
		if !p.CanRunScenarios() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
			return
		}
		var req scenarioRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		params, err := req.params()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out, err := s.Service.RunScenario(r.Context(), engine.ScenarioRequest{
			DistrictID: p.District,
			Name:       req.Name,
			CreatedBy:  p.UserID,
			Status:     req.Status,
			Params:     params,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !out.Persisted {
			// The result stands; the record is held for a retry by id.
			writeJSON(w, http.StatusOK, scenarioResponse{
				Scenario:  out.Scenario,
				Persisted: false,
				Warnings: []string{
					"scenario computed but not saved: " + out.StorageErr.Error(),
					"retry with POST /v1/scenarios/retry {\"id\": \"" + out.Scenario.ID + "\"}",
				},
			})
			return
		}
		writeJSON(w, http.StatusCreated, scenarioResponse{Scenario: out.Scenario, Persisted: true, Warnings: []string{}})
	case http.MethodGet:
		p, ok := s.begin(w, r, http.MethodGet)
		if !ok {
			return
		}
		items, err := s.Service.ListScenarios(r.Context(), p.District)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if t := model.ScenarioType(r.URL.Query().Get("type")); t != "" {
			filtered := make([]model.Scenario, 0, len(items))
			for _, sc := range items {
				if sc.Type == t {
					filtered = append(filtered, sc)
				}
			}
			items = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ScenarioRetryHandler handles POST /v1/scenarios/retry
func (s *Server) ScenarioRetryHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	if !p.CanRunScenarios() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
		return
	}
	var req retryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.Service.RetryScenario(r.Context(), p.District, req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Log.Info("scenario persisted on retry", zap.String("district", p.District), zap.String("scenario", saved.ID))
	writeJSON(w, http.StatusOK, scenarioResponse{Scenario: saved, Persisted: true, Warnings: []string{}})
}

// ScenarioByIDHandler handles GET /v1/scenarios/{id}
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scenarios/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	sc, err := s.Service.GetScenario(r.Context(), p.District, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
