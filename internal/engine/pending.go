package engine

import (
	"sync"
	"time"

	"schoolbus/internal/model"
)

// pendingScenarios holds computed scenarios whose write failed, so a retry can
// persist the server's own record instead of one sent back by the caller.
type pendingScenarios struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]pendingScenario
}

type pendingScenario struct {
	sc      model.Scenario
	expires time.Time
}

func newPendingScenarios(ttl time.Duration, now func() time.Time) *pendingScenarios {
	return &pendingScenarios{ttl: ttl, now: now, items: map[string]pendingScenario{}}
}

func (p *pendingScenarios) put(sc model.Scenario) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for id, it := range p.items {
		if !now.Before(it.expires) {
			delete(p.items, id)
		}
	}
	p.items[sc.ID] = pendingScenario{sc: sc, expires: now.Add(p.ttl)}
}

// get returns the pending record only for its own district and before expiry.
func (p *pendingScenarios) get(districtID, id string) (model.Scenario, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.items[id]
	if !ok {
		return model.Scenario{}, false
	}
	if !p.now().Before(it.expires) {
		delete(p.items, id)
		return model.Scenario{}, false
	}
	if it.sc.DistrictID != districtID {
		return model.Scenario{}, false
	}
	return it.sc, true
}

func (p *pendingScenarios) drop(id string) {
	p.mu.Lock()
	delete(p.items, id)
	p.mu.Unlock()
}

func (p *pendingScenarios) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
