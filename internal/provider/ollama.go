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

const ollamaName = "Ollama"

// healthProbeTimeout bounds the /api/tags probe. The probe is only used
// for status reporting, never for dispatch decisions.
const healthProbeTimeout = 2 * time.Second

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ollama is the local chat backend. No API key; it is always considered
// configured and fails over the network if the daemon is down.
type Ollama struct {
	baseURL    string
	chatModel  string
	httpClient *http.Client
}

// NewOllama creates an Ollama client. Pass nil to use the default HTTP client.
func NewOllama(baseURL, chatModel string, httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = newHTTPClient(120 * time.Second)
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		httpClient: httpClient,
	}
}

// Name implements Client.
func (o *Ollama) Name() string { return ollamaName }

// Configured implements Client. Always true: availability is only
// discoverable by calling.
func (o *Ollama) Configured() bool { return true }

// Send implements Client.
func (o *Ollama) Send(ctx context.Context, msg string, history model.History) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:    o.chatModel,
		Messages: buildMessages(history, msg),
		Stream:   false,
	})
	if err != nil {
		return "", &Error{Provider: ollamaName, Message: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: ollamaName, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: ollamaName, Message: "request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: ollamaName, Message: "read response", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if res.StatusCode == http.StatusNotFound {
			msg = "model " + o.chatModel + " not found, run: ollama pull " + o.chatModel
		} else if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return "", &Error{Provider: ollamaName, StatusCode: res.StatusCode, Message: msg}
	}

	var payload ollamaResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &Error{Provider: ollamaName, Message: "decode response", Err: err}
	}
	if payload.Message.Content == nil {
		return "", &Error{Provider: ollamaName, Message: "missing reply in response"}
	}

	return strings.TrimSpace(*payload.Message.Content), nil
}

// CheckHealth reports whether the Ollama daemon is reachable and the
// configured model is pulled. The probe aborts after a short timeout.
func (o *Ollama) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	res, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return false
	}

	var payload ollamaTagsResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return false
	}

	for _, m := range payload.Models {
		if strings.HasPrefix(m.Name, o.chatModel) {
			return true
		}
	}
	return false
}
