package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/model"
)

const fallbackName = "AIService"

// fallbackRequest mirrors the generic AI service contract: the raw
// message plus the bounded history, no provider-specific schema.
type fallbackRequest struct {
	Message string       `json:"message"`
	History []model.Turn `json:"history"`
}

// fallbackResponse accepts either field name the service may answer with.
type fallbackResponse struct {
	Response *string `json:"response"`
	Message  *string `json:"message"`
	Error    *string `json:"error"`
	Detail   *string `json:"detail"`
}

// Fallback forwards chat to the generic AI service. It is the last
// resort in the provider chain and is always considered configured.
type Fallback struct {
	baseURL    string
	httpClient *http.Client
}

// NewFallback creates a Fallback client. Pass nil to use the default HTTP client.
func NewFallback(baseURL string, httpClient *http.Client) *Fallback {
	if httpClient == nil {
		httpClient = newHTTPClient(120 * time.Second)
	}
	return &Fallback{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name implements Client.
func (f *Fallback) Name() string { return fallbackName }

// Configured implements Client.
func (f *Fallback) Configured() bool { return true }

// Send implements Client.
func (f *Fallback) Send(ctx context.Context, msg string, history model.History) (string, error) {
	body, err := json.Marshal(fallbackRequest{
		Message: msg,
		History: history.Tail(maxHistoryTurns),
	})
	if err != nil {
		return "", &Error{Provider: fallbackName, Message: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: fallbackName, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: fallbackName, Message: "request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: fallbackName, Message: "read response", Err: err}
	}

	var payload fallbackResponse
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_ = json.Unmarshal(raw, &payload)
		msg := http.StatusText(res.StatusCode)
		if payload.Error != nil {
			msg = *payload.Error
		} else if payload.Detail != nil {
			msg = *payload.Detail
		}
		return "", &Error{Provider: fallbackName, StatusCode: res.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &Error{Provider: fallbackName, Message: "decode response", Err: err}
	}

	reply := payload.Response
	if reply == nil {
		reply = payload.Message
	}
	if reply == nil {
		return "", &Error{Provider: fallbackName, Message: "missing reply in response"}
	}

	return strings.TrimSpace(*reply), nil
}
