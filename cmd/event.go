package cmd

import (
	"context"
	"time"

	"github.com/frahmantamala/secure-payments/internal/core/events"
	"github.com/frahmantamala/secure-payments/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish payment lifecycle events through the audit pipeline for debugging`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [payment.created|payment.approved]",
	Short:     "Publish a test event",
	Long:      `Publish a synthetic payment event to an event bus wired with the audit log handler`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypePaymentCreated, events.EventTypePaymentApproved},
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventPaymentID string
	eventAmount    int64
)

func publishTestEvent(eventType string) {
	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)
	audit := events.AuditLogHandler(logger.With("component", "audit"))
	eventBus.Subscribe(events.EventTypePaymentCreated, audit)
	eventBus.Subscribe(events.EventTypePaymentApproved, audit)

	paymentID := eventPaymentID
	if paymentID == "" {
		paymentID = uuid.NewString()
	}
	now := time.Now().UTC()

	var event events.Event
	switch eventType {
	case events.EventTypePaymentCreated:
		event = events.NewPaymentCreatedEvent(paymentID, eventAmount, "PENDING", now)
	case events.EventTypePaymentApproved:
		event = events.NewPaymentApprovedEvent(paymentID, eventAmount, now)
	default:
		logger.Error("unknown event type", "event_type", eventType)
		return
	}

	logger.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.PublishSync(context.Background(), event); err != nil {
		logger.Error("failed to publish event", "error", err)
		return
	}

	logger.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventPaymentID, "payment-id", "", "Payment id to put in the event (random when empty)")
	publishEventCmd.Flags().Int64Var(&eventAmount, "amount", 100, "Amount to put in the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
