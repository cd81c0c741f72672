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

const groqName = "Groq"

// groqRequest is the minimal request shape for the OpenAI-compatible
// chat completions endpoint Groq exposes.
type groqRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// groqResponse is the minimal response shape.
type groqResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Groq is the cloud chat backend. Fast, needs an API key.
type Groq struct {
	apiKey     string
	endpoint   string
	chatModel  string
	httpClient *http.Client
}

// NewGroq creates a Groq client. Pass nil to use the default HTTP client.
func NewGroq(apiKey, endpoint, chatModel string, httpClient *http.Client) *Groq {
	if httpClient == nil {
		httpClient = newHTTPClient(60 * time.Second)
	}
	return &Groq{
		apiKey:     apiKey,
		endpoint:   endpoint,
		chatModel:  chatModel,
		httpClient: httpClient,
	}
}

// Name implements Client.
func (g *Groq) Name() string { return groqName }

// Configured reports whether an API key is present.
func (g *Groq) Configured() bool { return g.apiKey != "" }

// Send implements Client.
func (g *Groq) Send(ctx context.Context, msg string, history model.History) (string, error) {
	if !g.Configured() {
		return "", &Error{Provider: groqName, Message: "API key not configured"}
	}

	body, err := json.Marshal(groqRequest{
		Model:       g.chatModel,
		Messages:    buildMessages(history, msg),
		Temperature: genTemperature,
		MaxTokens:   genMaxTokens,
	})
	if err != nil {
		return "", &Error{Provider: groqName, Message: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: groqName, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: groqName, Message: "request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: groqName, Message: "read response", Err: err}
	}

	var payload groqResponse
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// The error body may itself be malformed; keep the status either way.
		_ = json.Unmarshal(raw, &payload)
		msg := payload.Error.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return "", &Error{Provider: groqName, StatusCode: res.StatusCode, Message: "API error: " + msg}
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &Error{Provider: groqName, Message: "decode response", Err: err}
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == nil {
		return "", &Error{Provider: groqName, Message: "missing reply in response"}
	}

	return strings.TrimSpace(*payload.Choices[0].Message.Content), nil
}
