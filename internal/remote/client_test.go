package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rsahai/bizkeeper/internal/apperr"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestPostSendsIdempotencyKey(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusCreated)
	c := NewHTTPClient(srv.URL, 5*time.Second)

	body := json.RawMessage(`{"id":"p-1","name":"Website revamp"}`)
	if err := c.Post(context.Background(), "projects", "p-1", body); err != nil {
		t.Fatalf("Post() failed: %v", err)
	}

	if captured.method != http.MethodPost {
		t.Errorf("method = %s", captured.method)
	}
	if captured.path != "/api/projects" {
		t.Errorf("path = %s, want /api/projects", captured.path)
	}
	if got := captured.header.Get("Idempotency-Key"); got != "p-1" {
		t.Errorf("Idempotency-Key = %q, want p-1", got)
	}
	if got := captured.header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if captured.body != string(body) {
		t.Errorf("body = %q", captured.body)
	}
}

func TestPutTargetsEntityPath(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	c := NewHTTPClient(srv.URL, 5*time.Second)

	err := c.Put(context.Background(), "timeEntries", "T1", json.RawMessage(`{"id":"T1","hours":5}`))
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if captured.path != "/api/timeEntries/T1" {
		t.Errorf("path = %s, want /api/timeEntries/T1", captured.path)
	}
	if captured.header.Get("Idempotency-Key") != "" {
		t.Error("Put should not send an Idempotency-Key")
	}
}

func TestDeleteSendsNoBody(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusNoContent)
	c := NewHTTPClient(srv.URL, 5*time.Second)

	if err := c.Delete(context.Background(), "invoices", "INV-9"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if captured.method != http.MethodDelete || captured.path != "/api/invoices/INV-9" {
		t.Errorf("got %s %s", captured.method, captured.path)
	}
	if captured.body != "" {
		t.Errorf("body = %q, want empty", captured.body)
	}
}

func TestNon2xxIsRemoteError(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusInternalServerError)
	c := NewHTTPClient(srv.URL, 5*time.Second)

	err := c.Post(context.Background(), "clients", "c-1", json.RawMessage(`{"id":"c-1"}`))
	if err == nil {
		t.Fatal("Post() should fail on 500")
	}
	if !apperr.Is(err, apperr.ErrRemote) {
		t.Errorf("expected REMOTE_ERROR, got %v", err)
	}
}

func TestRequestHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Put(ctx, "tasks", "t-1", json.RawMessage(`{"id":"t-1"}`))
	if err == nil {
		t.Fatal("Put() should fail once the context expires")
	}
	if !apperr.Is(err, apperr.ErrRemote) {
		t.Errorf("expected REMOTE_ERROR, got %v", err)
	}
}
