package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatrelay/chatrelay/internal/model"
)

func TestGemini_Send(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotReq geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" reply "}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("key-123", srv.URL, "gemini-2.0-flash", srv.Client())

	history := model.History{
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleAssistant, Content: "a"},
	}
	reply, err := g.Send(context.Background(), "next", history)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if reply != "reply" {
		t.Errorf("reply should be trimmed, got %q", reply)
	}
	if !strings.HasSuffix(gotPath, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotKey != "key-123" {
		t.Errorf("API key should travel in the query string, got %q", gotKey)
	}

	if len(gotReq.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(gotReq.Contents))
	}
	// Assistant turns become "model" in Gemini's vocabulary.
	if gotReq.Contents[1].Role != "model" {
		t.Errorf("assistant turn should map to model, got %s", gotReq.Contents[1].Role)
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 2048 || gotReq.GenerationConfig.TopP != 0.95 {
		t.Errorf("unexpected generation config: %+v", gotReq.GenerationConfig)
	}
}

func TestGemini_Send_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key invalid"}}`))
	}))
	defer srv.Close()

	g := NewGemini("bad-key", srv.URL, "m", srv.Client())

	_, err := g.Send(context.Background(), "hi", nil)
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.HTTPStatusCode() != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", provErr.HTTPStatusCode())
	}
	if !strings.Contains(provErr.Message, "API key invalid") {
		t.Errorf("expected upstream message, got %q", provErr.Message)
	}
}

func TestGemini_Send_MalformedReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("key", srv.URL, "m", srv.Client())
	if _, err := g.Send(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error for missing reply text, got nil")
	}
}

func TestGemini_NotConfigured(t *testing.T) {
	t.Parallel()

	g := NewGemini("", "http://unused", "m", nil)
	if g.Configured() {
		t.Error("Gemini without key should not report configured")
	}
}
