// Package pipeline contains the dispatch engine: the batch dispatcher, the
// notification orchestrator and the Pub/Sub trigger stages that feed it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Trigger is the envelope published to the trigger topic.
type Trigger struct {
	Type   notification.Type   `json:"type"`
	Deal   *notification.Deal  `json:"deal,omitempty"`
	UserID string              `json:"user_id,omitempty"`
	Order  *notification.Order `json:"order,omitempty"`
}

var validate = validator.New()

// Validate checks that the envelope carries the fields its type needs.
func (t *Trigger) Validate() error {
	switch t.Type {
	case notification.TypeHotDeal:
		if t.Deal == nil {
			return errors.New("hot_deal trigger requires deal")
		}
		return validate.Struct(t.Deal)
	case notification.TypeOrderConfirm:
		if t.UserID == "" {
			return errors.New("order_confirm trigger requires user_id")
		}
		if t.Order == nil {
			return errors.New("order_confirm trigger requires order")
		}
		return validate.Struct(t.Order)
	default:
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

// TriggerTransformer unmarshals and validates a raw message payload.
// Malformed messages return an error without the skip flag: skip means ack,
// and these must be nacked so the subscription's dead letter policy applies.
func TriggerTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*Trigger, bool, error) {
	var trigger Trigger
	if err := json.Unmarshal(msg.Payload, &trigger); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal trigger from message %s: %w", msg.ID, err)
	}
	if err := trigger.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid trigger in message %s: %w", msg.ID, err)
	}
	return &trigger, false, nil
}
