// Package notification contains the public domain models for the push
// dispatch service: device registrations, dispatch inputs and outcomes, and
// the notification history record.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPlatform is returned when a registration names a platform other
// than ios or android.
var ErrInvalidPlatform = errors.New(`platform must be either "ios" or "android"`)

// Platform identifies the operating system a device token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates a raw platform value.
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(raw); p {
	case PlatformIOS, PlatformAndroid:
		return p, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidPlatform, raw)
	}
}

// DeviceRegistration binds a provider-issued device token to a user.
// The pair (UserID, DeviceToken) is the identity of a registration.
type DeviceRegistration struct {
	UserID      string    `json:"user_id" firestore:"user_id"`
	DeviceToken string    `json:"device_token" firestore:"device_token"`
	Platform    Platform  `json:"platform" firestore:"platform"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updated_at"`
}

// TokenRef identifies a single registration.
type TokenRef struct {
	UserID      string `json:"user_id"`
	DeviceToken string `json:"device_token"`
}

// Type is the kind of notification event being dispatched.
type Type string

const (
	TypeHotDeal      Type = "hot_deal"
	TypeOrderConfirm Type = "order_confirm"
)

// Status is the recorded delivery status of a history row.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Data is the notification data payload. Values are coerced to strings by the
// delivery client, so callers may use any JSON scalar.
type Data map[string]any

// Deal is the input of a hot deal broadcast.
type Deal struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	Discount    any    `json:"discount,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// Order is the input of a targeted order confirmation.
type Order struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// HistoryRecord is the audit row written for every notification event.
type HistoryRecord struct {
	ID               string    `json:"id" firestore:"id"`
	UserID           string    `json:"user_id" firestore:"user_id"`
	NotificationType Type      `json:"notification_type" firestore:"notification_type"`
	Title            string    `json:"title" firestore:"title"`
	Body             string    `json:"body" firestore:"body"`
	DataPayload      Data      `json:"data_payload" firestore:"data_payload"`
	Status           Status    `json:"status" firestore:"status"`
	ErrorMessage     string    `json:"error_message,omitempty" firestore:"error_message,omitempty"`
	SentAt           time.Time `json:"sent_at" firestore:"sent_at"`
}
