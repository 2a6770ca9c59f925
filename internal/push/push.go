// Package push delivers notification payloads to registered device tokens.
// Delivery is fire-and-forget: one failed token never aborts the rest of the
// multicast, and callers treat partial success as success.
package push

import (
	"context"

	"log/slog"
)

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// MulticastResult reports per-batch delivery counts. Individual token
// failures land in FailureCount; only a total transport failure is returned
// as an error from SendMulticast.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
}

// Sender is the push-delivery collaborator contract.
type Sender interface {
	SendMulticast(ctx context.Context, tokens []string, notification Notification, data map[string]string) (MulticastResult, error)
}

// LogSender is the development sender: it logs instead of delivering.
// Used when push is disabled in config.
type LogSender struct {
	Logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) SendMulticast(_ context.Context, tokens []string, notification Notification, data map[string]string) (MulticastResult, error) {
	s.Logger.Info("Push delivery disabled, logging instead",
		slog.Int("tokens", len(tokens)),
		slog.String("title", notification.Title),
		slog.String("body", notification.Body),
		slog.Any("data", data),
	)
	return MulticastResult{SuccessCount: len(tokens)}, nil
}
