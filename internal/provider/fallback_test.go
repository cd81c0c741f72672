package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatrelay/chatrelay/internal/model"
)

func TestFallback_Send(t *testing.T) {
	t.Parallel()

	var gotReq fallbackRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"generic reply"}`))
	}))
	defer srv.Close()

	f := NewFallback(srv.URL, srv.Client())

	history := make(model.History, 25)
	for i := range history {
		history[i] = model.Turn{Role: model.RoleUser, Content: "x"}
	}

	reply, err := f.Send(context.Background(), "hi", history)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "generic reply" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if gotReq.Message != "hi" {
		t.Errorf("unexpected message: %q", gotReq.Message)
	}
	// History is passed through raw but still bounded.
	if len(gotReq.History) != 20 {
		t.Errorf("expected 20 forwarded turns, got %d", len(gotReq.History))
	}
}

func TestFallback_Send_MessageFieldFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"alt field reply"}`))
	}))
	defer srv.Close()

	f := NewFallback(srv.URL, srv.Client())
	reply, err := f.Send(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "alt field reply" {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestFallback_Send_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"model loading"}`))
	}))
	defer srv.Close()

	f := NewFallback(srv.URL, srv.Client())

	_, err := f.Send(context.Background(), "hi", nil)
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.HTTPStatusCode() != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", provErr.HTTPStatusCode())
	}
	if provErr.Message != "model loading" {
		t.Errorf("expected detail message, got %q", provErr.Message)
	}
}

func TestFallback_Send_MissingReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFallback(srv.URL, srv.Client())
	if _, err := f.Send(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error for missing reply, got nil")
	}
}
