// Package webhooks delivers saved-scenario notifications to an external
// HTTP endpoint with HMAC signatures and bounded retries.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolbus/internal/metrics"
	"schoolbus/internal/model"
)

const EventScenarioCreated = "scenario.created"

// ErrQueueFull is returned by PublishScenario when the delivery queue is saturated.
var ErrQueueFull = errors.New("webhook queue full")

// Delivery is one queued notification.
type Delivery struct {
	ID         string
	EventType  string
	DistrictID string
	Payload    []byte
	Attempts   int
}

// Notifier posts scenario events to URL from a single background worker.
// The zero value is not usable; build one with NewNotifier.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Backoff     func(attempts int) time.Duration
	Log         *zap.Logger

	queue chan Delivery
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewNotifier(url, secret string, maxAttempts int, log *zap.Logger) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Backoff:     nextBackoff,
		Log:         log,
		queue:       make(chan Delivery, 64),
		stop:        make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.stop:
				return
			case d := <-n.queue:
				n.deliver(d)
			}
		}
	}()
}

// Close stops the worker and waits for an in-flight delivery to finish.
// Queued deliveries are dropped.
func (n *Notifier) Close() error {
	n.once.Do(func() { close(n.stop) })
	n.wg.Wait()
	return nil
}

// PublishScenario enqueues a scenario.created notification. It never blocks.
func (n *Notifier) PublishScenario(_ context.Context, sc model.Scenario) error {
	id := uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":         id,
		"type":       EventScenarioCreated,
		"districtId": sc.DistrictID,
		"ts":         time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"scenarioId":       sc.ID,
			"name":             sc.Name,
			"scenarioType":     string(sc.Type),
			"estimatedSavings": sc.EstimatedSavings.StringFixed(2),
			"routesAffected":   sc.RoutesAffected,
			"studentsAffected": sc.StudentsAffected,
		},
	})
	if err != nil {
		return err
	}
	d := Delivery{ID: id, EventType: EventScenarioCreated, DistrictID: sc.DistrictID, Payload: body}
	select {
	case n.queue <- d:
		return nil
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// deliver retries d with backoff until it succeeds, MaxAttempts is reached
// or the notifier stops.
func (n *Notifier) deliver(d Delivery) {
	for {
		code, err := n.attempt(d)
		d.Attempts++
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return
		}
		if d.Attempts >= n.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			n.Log.Warn("webhook delivery failed",
				zap.String("delivery", d.ID),
				zap.String("district", d.DistrictID),
				zap.Int("attempts", d.Attempts),
				zap.Int("status", code),
				zap.Error(err))
			return
		}
		select {
		case <-n.stop:
			return
		case <-time.After(n.Backoff(d.Attempts)):
		}
	}
}

// attempt makes one POST. Any non-2xx status is an error.
func (n *Notifier) attempt(d Delivery) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Delivery-Id", d.ID)
	if n.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(n.Secret, d.Payload))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
