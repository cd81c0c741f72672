package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chatrelay/chatrelay/internal/handler/dto"
	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/service"
)

// ChatHandler handles HTTP requests for the chat endpoint.
type ChatHandler struct {
	svc    *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		svc:    svc,
		logger: logger,
	}
}

// Chat handles POST /api/chat. Protected by the auth middleware.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req dto.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	reply, err := h.svc.Dispatch(r.Context(), req.Message, req.History)
	if err != nil {
		h.handleDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ChatResponse{Response: reply})
}

// handleDispatchError maps dispatch errors to HTTP responses. When the
// chain was exhausted, the last provider's upstream status is surfaced
// if it failed with a structured HTTP error; otherwise a 502. A backend
// failure is never converted into a fabricated 200 reply.
func (h *ChatHandler) handleDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Message is required")
	case errors.Is(err, service.ErrAllProvidersUnavailable):
		h.logger.Error("chat_failed", "error", err)

		status := http.StatusBadGateway
		message := "AI service error"
		var provErr *provider.Error
		if errors.As(err, &provErr) && provErr.HTTPStatusCode() != 0 {
			status = provErr.HTTPStatusCode()
			message = provErr.Message
		}
		writeError(w, status, "PROVIDERS_UNAVAILABLE", message)
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
