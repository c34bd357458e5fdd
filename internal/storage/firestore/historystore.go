package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const historyCollection = "notification_history"

// HistoryStore implements dispatch.HistoryStore. Records are keyed by their
// id and never updated.
type HistoryStore struct {
	client *firestore.Client
}

func NewHistoryStore(client *firestore.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

func (s *HistoryStore) Insert(ctx context.Context, record notification.HistoryRecord) (notification.HistoryRecord, error) {
	if record.DataPayload == nil {
		record.DataPayload = notification.Data{}
	}
	if _, err := s.client.Collection(historyCollection).Doc(record.ID).Create(ctx, record); err != nil {
		return notification.HistoryRecord{}, fmt.Errorf("firestore insert history: %w", err)
	}
	return record, nil
}

// ListByUser needs a composite index on (user_id, sent_at desc).
func (s *HistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error) {
	iter := s.client.Collection(historyCollection).
		Where("user_id", "==", userID).
		OrderBy("sent_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	records := make([]notification.HistoryRecord, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		var rec notification.HistoryRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("firestore decode history %s: %w", doc.Ref.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
