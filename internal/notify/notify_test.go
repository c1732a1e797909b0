package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"digitalcoo/internal/config"
	"digitalcoo/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
	status  int
}

func (r *recorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(req.Body).Decode(&raw)
		r.mu.Lock()
		r.bodies = append(r.bodies, raw)
		r.headers = append(r.headers, req.Header.Clone())
		status := r.status
		r.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func notification(typ string) domain.Notification {
	taskID := "t1"
	return domain.Notification{ID: "n1", UserID: "u1", Type: typ, Title: "Task Failed", Message: "quota exceeded", RelatedTaskID: &taskID}
}

func TestDispatcherFiltersByType(t *testing.T) {
	errorsOnly := &recorder{}
	everything := &recorder{}
	s1 := httptest.NewServer(errorsOnly.handler())
	defer s1.Close()
	s2 := httptest.NewServer(everything.handler())
	defer s2.Close()

	cfg := config.Default()
	cfg.Notify.Webhooks = []config.Webhook{
		{URL: s1.URL, Types: []string{"error"}, Secret: "s3cret"},
		{URL: s2.URL},
	}
	d := NewDispatcher(cfg, nil)

	ok, err := d.Deliver(context.Background(), notification(domain.NotificationInfo))
	if err != nil || !ok {
		t.Fatalf("deliver info: %v %v", ok, err)
	}
	ok, err = d.Deliver(context.Background(), notification(domain.NotificationError))
	if err != nil || !ok {
		t.Fatalf("deliver error: %v %v", ok, err)
	}
	if len(errorsOnly.bodies) != 1 {
		t.Fatalf("expected 1 delivery to filtered hook, got %d", len(errorsOnly.bodies))
	}
	if got := errorsOnly.headers[0].Get("X-Coo-Secret"); got != "s3cret" {
		t.Fatalf("secret header = %q", got)
	}
	if got := errorsOnly.headers[0].Get("X-Coo-Event"); got != "error" {
		t.Fatalf("event header = %q", got)
	}
	if len(everything.bodies) != 2 {
		t.Fatalf("expected 2 deliveries to unfiltered hook, got %d", len(everything.bodies))
	}
	var evt webhookEvent
	if err := json.Unmarshal(everything.bodies[1], &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.ID != "n1" || evt.Message != "quota exceeded" || evt.RelatedTaskID == nil || *evt.RelatedTaskID != "t1" {
		t.Fatalf("unexpected payload %+v", evt)
	}
}

func TestDispatcherReportsFailures(t *testing.T) {
	failing := &recorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(failing.handler())
	defer srv.Close()

	cfg := config.Default()
	cfg.Notify.Webhooks = []config.Webhook{{URL: srv.URL}}
	ok, err := NewDispatcher(cfg, nil).Deliver(context.Background(), notification(domain.NotificationError))
	if ok || err == nil {
		t.Fatalf("expected failed delivery, got %v %v", ok, err)
	}
}

func TestDispatcherDisabled(t *testing.T) {
	d := NewDispatcher(config.Default(), nil)
	if d.Enabled() {
		t.Fatalf("default config has no destinations")
	}
	ok, err := d.Deliver(context.Background(), notification(domain.NotificationInfo))
	if ok || err != nil {
		t.Fatalf("expected no-op, got %v %v", ok, err)
	}
}

func TestSlackPayload(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	cfg := config.Default()
	cfg.Notify.SlackWebhookURL = srv.URL
	ok, err := NewDispatcher(cfg, nil).Deliver(context.Background(), notification(domain.NotificationError))
	if err != nil || !ok {
		t.Fatalf("deliver: %v %v", ok, err)
	}
	var payload SlackPayload
	if err := json.Unmarshal(rec.bodies[0], &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Text != "Task Failed" || len(payload.Attachments) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	att := payload.Attachments[0]
	if att.Color != "#FF0000" || len(att.Blocks) != 3 || att.Blocks[2].Type != "context" {
		t.Fatalf("unexpected attachment %+v", att)
	}
}
