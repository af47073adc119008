// Package api implements HTTP handlers and helpers for the route efficiency service.
package api

import (
	"errors"
	"net/http"
	"strings"

	"schoolbus/internal/store"
)

type Principal struct {
	District string
	Role     string // admin, planner, viewer
	UserID   string
}

var errUnauthenticated = errors.New("bearer token required")

// getPrincipal extracts district and role from a bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else, in dev mode only, falls back to X-District-Id/X-Role/X-User-Id.
// Browsers cannot set headers on WebSocket upgrades, so access_token is also accepted.
func (s *Server) getPrincipal(r *http.Request) (Principal, error) {
	tok := ""
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		tok = strings.TrimSpace(authz[len("Bearer "):])
	} else if q := r.URL.Query().Get("access_token"); q != "" {
		tok = q
	}
	if tok != "" && s.Auth != nil {
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return Principal{}, err
		}
		return Principal{District: pr.District, Role: pr.Role, UserID: pr.UserID}, nil
	}
	if s.Auth != nil && s.Auth.Mode != "dev" {
		return Principal{}, errUnauthenticated
	}
	district := strings.TrimSpace(r.Header.Get("X-District-Id"))
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
	if district == "" {
		district = store.DemoDistrict
	}
	if role == "" {
		role = "admin"
	}
	return Principal{District: district, Role: role, UserID: r.Header.Get("X-User-Id")}, nil
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanRunScenarios reports whether the principal may run and persist scenarios.
func (p Principal) CanRunScenarios() bool { return p.IsAdmin() || p.Role == "planner" }

// authenticate writes a 401 problem and returns false when no principal can be resolved.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, err := s.getPrincipal(r)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return Principal{}, false
	}
	return p, true
}
