package api

import (
	"context"
	"errors"
	"sync"

	"schoolbus/internal/engine"
	"schoolbus/internal/model"
)

// Event is one message on a district's scenario stream.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const EventScenarioCreated = "scenario.created"

// EventBroker fans scenario events out to subscribers of a district.
type EventBroker interface {
	Subscribe(districtID string) (chan Event, error)
	Unsubscribe(districtID string, ch chan Event)
	Publish(ctx context.Context, districtID string, evt Event) error
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // districtId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(districtID string) (chan Event, error) {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[districtID] == nil {
		b.subs[districtID] = map[chan Event]struct{}{}
	}
	b.subs[districtID][ch] = struct{}{}
	b.mu.Unlock()
	return ch, nil
}

func (b *Broker) Unsubscribe(districtID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[districtID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, districtID)
	}
	close(ch)
}

// Publish never blocks; slow subscribers drop events.
func (b *Broker) Publish(_ context.Context, districtID string, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[districtID] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// scenarioEvent is the wire form of a saved scenario.
func scenarioEvent(sc model.Scenario) Event {
	return Event{Type: EventScenarioCreated, Data: map[string]any{
		"scenarioId":       sc.ID,
		"name":             sc.Name,
		"scenarioType":     string(sc.Type),
		"estimatedSavings": sc.EstimatedSavings.StringFixed(2),
		"routesAffected":   sc.RoutesAffected,
		"studentsAffected": sc.StudentsAffected,
		"status":           string(sc.Status),
		"createdBy":        sc.CreatedBy,
		"createdAt":        sc.CreatedAt,
	}}
}

// ScenarioPublisher adapts an EventBroker to the service's publisher contract.
type ScenarioPublisher struct {
	Broker EventBroker
}

func (p ScenarioPublisher) PublishScenario(ctx context.Context, sc model.Scenario) error {
	return p.Broker.Publish(ctx, sc.DistrictID, scenarioEvent(sc))
}

// publishers fans a saved scenario out to every sink. All sinks are tried.
type publishers []engine.ScenarioPublisher

func (ps publishers) PublishScenario(ctx context.Context, sc model.Scenario) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishScenario(ctx, sc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
