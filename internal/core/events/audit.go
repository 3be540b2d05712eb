package events

import (
	"context"
	"log/slog"
)

// AuditLogHandler writes every lifecycle event to the audit log.
func AuditLogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
}
