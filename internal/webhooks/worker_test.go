package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"schoolbus/internal/model"
)

func testNotifier(url string, maxAttempts int) *Notifier {
	n := NewNotifier(url, "secret", maxAttempts, zap.NewNop())
	n.Backoff = func(int) time.Duration { return time.Millisecond }
	return n
}

func scenario() model.Scenario {
	return model.Scenario{
		ID: "sc-1", DistrictID: "d1", Name: "spring", Type: model.ScenarioConsolidation,
		EstimatedSavings: decimal.NewFromInt(170000), RoutesAffected: 4, StudentsAffected: 109,
	}
}

func TestNotifierDeliversSignedEvent(t *testing.T) {
	got := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- r
		bodies <- b
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, 3)
	n.Start()
	defer func() { _ = n.Close() }()
	if err := n.PublishScenario(context.Background(), scenario()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var r *http.Request
	select {
	case r = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	body := <-bodies
	if r.Header.Get("X-Event-Type") != EventScenarioCreated {
		t.Fatalf("event type header = %q", r.Header.Get("X-Event-Type"))
	}
	if !VerifyHMAC("secret", body, r.Header.Get("X-Signature")) {
		t.Fatalf("signature does not verify")
	}
	var evt struct {
		Type       string         `json:"type"`
		DistrictID string         `json:"districtId"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.DistrictID != "d1" || evt.Data["scenarioId"] != "sc-1" || evt.Data["estimatedSavings"] != "170000.00" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestNotifierRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, 3)
	n.deliver(Delivery{ID: "x", EventType: EventScenarioCreated, Payload: []byte(`{}`)})
	if c := calls.Load(); c != 3 {
		t.Fatalf("calls = %d, want 3", c)
	}
}

func TestNotifierRetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, 5)
	n.deliver(Delivery{ID: "x", EventType: EventScenarioCreated, Payload: []byte(`{}`)})
	if c := calls.Load(); c != 2 {
		t.Fatalf("calls = %d, want 2", c)
	}
}

func TestPublishScenarioQueueFull(t *testing.T) {
	n := testNotifier("http://127.0.0.1:0", 1)
	for i := 0; i < cap(n.queue); i++ {
		if err := n.PublishScenario(context.Background(), scenario()); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if err := n.PublishScenario(context.Background(), scenario()); err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	if !VerifyHMAC("k", []byte("body"), sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyHMAC("k", []byte("other"), sig) || VerifyHMAC("k", []byte("body"), "zz") {
		t.Fatal("bad signature accepted")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if nextBackoff(-1) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatal("unexpected backoff")
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff = %v", nextBackoff(50))
	}
}
