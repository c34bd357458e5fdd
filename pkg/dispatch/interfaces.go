// Package dispatch defines the contracts between the dispatch engine and its
// external collaborators: the push provider and the persistence layer.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Sender delivers one notification to one device token.
// Implementations classify every provider error into an Outcome and never
// retry.
type Sender interface {
	Send(ctx context.Context, deviceToken, title, body string, data notification.Data) notification.Outcome
}

// TokenStore is the storage contract for device registrations.
type TokenStore interface {
	// Upsert inserts the registration or, when the (user, token) pair
	// exists, updates its platform and timestamp.
	Upsert(ctx context.Context, userID, deviceToken string, platform notification.Platform) (notification.DeviceRegistration, error)

	FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error)
	FindByUsers(ctx context.Context, userIDs []string) ([]notification.DeviceRegistration, error)

	// DeleteOne returns nil when no registration matched.
	DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error)
	DeleteAllForUser(ctx context.Context, userID string) error

	// All returns every registration. It is unbounded.
	All(ctx context.Context) ([]notification.DeviceRegistration, error)
}

// HistoryStore is the append-only storage contract for history records.
type HistoryStore interface {
	Insert(ctx context.Context, record notification.HistoryRecord) (notification.HistoryRecord, error)
	// ListByUser returns at most limit records, most recent first.
	ListByUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error)
}
