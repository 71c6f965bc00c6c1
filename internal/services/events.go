package services

import (
	"context"
	"log/slog"
	"time"

	"despesas/internal/amqp"
)

// EventPublisher delivers expense events. *amqp.Client implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error
}

// Clock returns the current time. Due-status decisions go through it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// publish sends evt when a publisher is configured. The store is the source
// of truth, so failures are only logged.
func publish(ctx context.Context, pub EventPublisher, evt *amqp.ExpenseEvent) {
	if pub == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping event", "type", evt.Type)
		return
	}
	if err := pub.PublishExpenseEvent(ctx, evt); err != nil {
		slog.WarnContext(ctx, "Failed to publish expense event",
			"type", evt.Type,
			"expense_id", evt.ExpenseID,
			"error", err)
	}
}
