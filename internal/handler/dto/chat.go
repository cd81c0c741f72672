package dto

import "github.com/chatrelay/chatrelay/internal/model"

// ChatRequest represents the request body for the chat endpoint.
// History is optional and may be arbitrarily long; only a bounded
// suffix is forwarded upstream.
type ChatRequest struct {
	Message string        `json:"message"`
	History model.History `json:"history,omitempty"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Response string `json:"response"`
}
