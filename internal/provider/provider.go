// Package provider contains clients for the AI chat backends.
//
// Every backend is exposed through the same Client capability so the
// dispatcher can try them in priority order without knowing wire details.
// Adding a backend means adding a Client implementation, not touching
// dispatch logic.
package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/model"
)

// maxHistoryTurns is the upper bound each client enforces on the turns
// it transmits, independent of what the dispatcher already trimmed.
const maxHistoryTurns = 20

// Generation settings shared by all chat backends.
const (
	genTemperature = 0.7
	genMaxTokens   = 2048
)

// Client is one AI chat backend.
type Client interface {
	// Name identifies the backend in logs and health reports.
	Name() string
	// Configured reports whether the backend has the static configuration
	// it needs (e.g. an API key). No network calls.
	Configured() bool
	// Send forwards the message with bounded history and returns the reply.
	Send(ctx context.Context, message string, history model.History) (string, error)
}

// Error is a failed provider call. StatusCode is non-zero when the
// backend answered with a structured HTTP error.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the upstream status, or 0 when the failure was
// not a structured HTTP error.
func (e *Error) HTTPStatusCode() int {
	return e.StatusCode
}

// message is the OpenAI-style chat message shape shared by Groq and Ollama.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildMessages maps the bounded history into role/content messages and
// appends the current message as the final user turn. Turns with blank
// content are dropped; unknown roles collapse to "user".
func buildMessages(history model.History, current string) []message {
	recent := history.Tail(maxHistoryTurns)
	messages := make([]message, 0, len(recent)+1)

	for _, turn := range recent {
		role := model.RoleUser
		if turn.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, message{Role: role, Content: turn.Content})
	}

	messages = append(messages, message{Role: model.RoleUser, Content: current})
	return messages
}

// newHTTPClient builds the outbound client shared by provider calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
