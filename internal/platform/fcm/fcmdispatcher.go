package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const (
	androidPriority = "high"
	apnsPriority    = "10"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

// NewDispatcher wraps an already initialised messaging client. The client is
// owned by the caller and shared for the life of the process.
func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Send makes exactly one delivery attempt to deviceToken.
func (d *Dispatcher) Send(ctx context.Context, deviceToken, title, body string, data notification.Data) notification.Outcome {
	msg := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: stringifyData(data),
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
		},
	}

	messageID, err := d.client.Send(ctx, msg)
	if err != nil {
		d.logger.Error("Error sending notification", "err", err)
		if isInvalidTokenError(err) {
			return notification.InvalidToken(err.Error())
		}
		return notification.TransientFailure(err.Error())
	}

	d.logger.Info("Notification sent", "message_id", messageID)
	return notification.Success(messageID)
}

// isInvalidTokenError maps UNREGISTERED and INVALID_ARGUMENT to InvalidToken.
// FCM v1 reports a malformed registration token as INVALID_ARGUMENT.
func isInvalidTokenError(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

// stringifyData coerces every value to a string; FCM data only carries
// string values.
func stringifyData(data notification.Data) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
