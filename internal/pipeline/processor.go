package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Dispatcher is the orchestrator surface the trigger processor needs.
type Dispatcher interface {
	SendHotDeal(ctx context.Context, deal notification.Deal) (notification.Summary, error)
	SendOrderConfirmation(ctx context.Context, userID string, order notification.Order) (notification.Summary, error)
}

// NewProcessor routes validated triggers to the orchestrator.
// Dispatch failures are logged and the message is acknowledged: a redelivered
// broadcast would notify every device again.
func NewProcessor(orchestrator Dispatcher, logger *slog.Logger) messagepipeline.StreamProcessor[Trigger] {
	return func(ctx context.Context, original messagepipeline.Message, trigger *Trigger) error {
		procLogger := logger.With(
			"trigger_type", string(trigger.Type),
			"pubsub_msg_id", original.ID,
		)

		var (
			summary notification.Summary
			err     error
		)
		switch trigger.Type {
		case notification.TypeHotDeal:
			summary, err = orchestrator.SendHotDeal(ctx, *trigger.Deal)
		case notification.TypeOrderConfirm:
			summary, err = orchestrator.SendOrderConfirmation(ctx, trigger.UserID, *trigger.Order)
		default:
			procLogger.Warn("Dropping trigger with unknown type")
			return nil
		}

		if err != nil {
			procLogger.Error("Trigger dispatch failed", "err", err)
			return nil
		}
		if summary.NoTargets {
			procLogger.Info("No devices registered for trigger; dropping notification.")
			return nil
		}
		procLogger.Info("Trigger dispatched",
			"sent", summary.Sent,
			"failed", summary.Failed,
			"invalid", summary.InvalidTokens,
		)
		return nil
	}
}
