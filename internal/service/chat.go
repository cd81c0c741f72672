package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatrelay/chatrelay/internal/model"
	"github.com/chatrelay/chatrelay/internal/provider"
)

// Chat dispatch errors.
var (
	ErrEmptyMessage            = errors.New("message is required")
	ErrAllProvidersUnavailable = errors.New("all AI providers unavailable")
)

// maxHistoryTurns bounds the conversation context forwarded to providers.
const maxHistoryTurns = 20

// healthChecker is implemented by providers with a cheap liveness probe.
type healthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// ChatService relays a message to the first available provider.
// The provider order is fixed at construction; it is the fallback
// priority, cheapest-preferred, not a load balancing set.
type ChatService struct {
	providers []provider.Client
	logger    *slog.Logger
}

// NewChatService creates a ChatService over the ordered provider chain.
func NewChatService(providers []provider.Client, logger *slog.Logger) *ChatService {
	return &ChatService{
		providers: providers,
		logger:    logger,
	}
}

// Dispatch tries each provider strictly in order and returns the first
// successful reply. Unconfigured providers are skipped without a network
// call; a failed provider is logged and never retried within the call.
// Only the bounded history suffix is forwarded.
func (s *ChatService) Dispatch(ctx context.Context, message string, history model.History) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	recent := history.Tail(maxHistoryTurns)

	var lastErr error
	for _, p := range s.providers {
		if !p.Configured() {
			s.logger.Debug("provider skipped", "provider", p.Name(), "reason", "not configured")
			continue
		}

		reply, err := p.Send(ctx, message, recent)
		if err == nil {
			s.logger.Info("chat_dispatched", "provider", p.Name(), "history_turns", len(recent))
			return reply, nil
		}

		lastErr = err
		s.logger.Warn("provider unavailable", "provider", p.Name(), "error", err)
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", ErrAllProvidersUnavailable, lastErr)
	}
	return "", ErrAllProvidersUnavailable
}

// ActiveProvider names the provider a chat request would currently hit:
// the first configured one, with health-probing providers consulted so
// a stopped local daemon is not reported as active. Informational only.
func (s *ChatService) ActiveProvider(ctx context.Context) string {
	for _, p := range s.providers {
		if !p.Configured() {
			continue
		}
		if hc, ok := p.(healthChecker); ok && !hc.CheckHealth(ctx) {
			continue
		}
		return p.Name()
	}
	return "none"
}
