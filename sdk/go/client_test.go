package coosdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items":      []map[string]any{{"id": "t1", "title": "Invoice Acme", "status": "pending", "category": "auto_execute"}},
			"nextCursor": "c1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "coo_abc"
	page, err := c.ListTasks(context.Background(), TaskFilter{Category: "auto_execute", Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotKey != "coo_abc" {
		t.Fatalf("api key header not sent: %q", gotKey)
	}
	if gotQuery != "category=auto_execute&limit=5" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "t1" || page.NextCursor != "c1" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found","message":"task x not found","details":{"entity":"task"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	_, err := c.Execute(context.Background(), "x")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	apiErr := err.(*APIError)
	if apiErr.Code != "not_found" || apiErr.Details["entity"] != "task" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestExecuteFailureIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks/t1/execute" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":false,"error":"quota exceeded","task":{"id":"t1","status":"failed"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).Execute(context.Background(), "t1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || res.Error == nil || *res.Error != "quota exceeded" || res.Task.Status != "failed" {
		t.Fatalf("unexpected result %+v", res)
	}
}
