// Package history records the append-only audit trail of notification events.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// DefaultListLimit bounds ListForUser when no limit is given.
const DefaultListLimit = 50

type Recorder struct {
	store        dispatch.HistoryStore
	logger       *slog.Logger
	now          func() time.Time
	defaultLimit int
}

type Option func(*Recorder)

// WithClock overrides the SentAt source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithDefaultLimit sets the limit used when ListForUser is called with a
// non-positive limit.
func WithDefaultLimit(limit int) Option {
	return func(r *Recorder) {
		if limit > 0 {
			r.defaultLimit = limit
		}
	}
}

func NewRecorder(store dispatch.HistoryStore, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       logger.With("component", "HistoryRecorder"),
		now:          time.Now,
		defaultLimit: DefaultListLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one history row. errorMessage is stored only when non-empty.
func (r *Recorder) Record(
	ctx context.Context,
	userID string,
	notificationType notification.Type,
	title, body string,
	data notification.Data,
	status notification.Status,
	errorMessage string,
) (notification.HistoryRecord, error) {
	record := notification.HistoryRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		NotificationType: notificationType,
		Title:            title,
		Body:             body,
		DataPayload:      data,
		Status:           status,
		ErrorMessage:     errorMessage,
		SentAt:           r.now().UTC(),
	}

	saved, err := r.store.Insert(ctx, record)
	if err != nil {
		r.logger.Error("Error creating notification history", "user_id", userID, "type", notificationType, "err", err)
		return notification.HistoryRecord{}, fmt.Errorf("record history for user %s: %w", userID, err)
	}
	return saved, nil
}

// ListForUser returns the user's history, most recent first.
func (r *Recorder) ListForUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	records, err := r.store.ListByUser(ctx, userID, limit)
	if err != nil {
		r.logger.Error("Error finding notification history", "user_id", userID, "err", err)
		return nil, fmt.Errorf("list history for user %s: %w", userID, err)
	}
	if records == nil {
		records = []notification.HistoryRecord{}
	}
	return records, nil
}
