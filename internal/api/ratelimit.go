package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// districtLimiter applies a token bucket per district. A zero rate disables limiting.
type districtLimiter struct {
	rps   rate.Limit
	burst int
	mu    sync.Mutex
	by    map[string]*rate.Limiter
}

func newDistrictLimiter(rps float64, burst int) *districtLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &districtLimiter{rps: rate.Limit(rps), burst: burst, by: map[string]*rate.Limiter{}}
}

func (l *districtLimiter) Allow(district string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.by[district]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.by[district] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// limit rejects requests over the caller district's budget with 429.
func (s *Server) limit(w http.ResponseWriter, r *http.Request, p Principal) bool {
	if s.Limiter.Allow(p.District) {
		return true
	}
	w.Header().Set("Retry-After", "1")
	writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for district "+p.District, r.URL.Path)
	return false
}
