package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const (
	insertHistoryQuery = `
		INSERT INTO notification_history
			(id, user_id, notification_type, title, body, data_payload, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, user_id, notification_type, title, body, data_payload, status, error_message, sent_at`

	listHistoryQuery = `
		SELECT id, user_id, notification_type, title, body, data_payload, status, error_message, sent_at
		FROM notification_history
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`
)

// HistoryStore implements dispatch.HistoryStore on notification_history.
// Each insert is a single statement, so a record is either fully written or
// not at all.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Insert(ctx context.Context, record notification.HistoryRecord) (notification.HistoryRecord, error) {
	payload, err := json.Marshal(record.DataPayload)
	if err != nil {
		return notification.HistoryRecord{}, fmt.Errorf("marshal data payload: %w", err)
	}
	errMsg := sql.NullString{String: record.ErrorMessage, Valid: record.ErrorMessage != ""}

	row := s.db.QueryRowContext(ctx, insertHistoryQuery,
		record.ID,
		record.UserID,
		string(record.NotificationType),
		record.Title,
		record.Body,
		payload,
		string(record.Status),
		errMsg,
		record.SentAt,
	)
	saved, err := scanHistory(row)
	if err != nil {
		return notification.HistoryRecord{}, fmt.Errorf("postgres insert history: %w", err)
	}
	return saved, nil
}

func (s *HistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, listHistoryQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres query history: %w", err)
	}
	defer rows.Close()

	records := make([]notification.HistoryRecord, 0)
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres iterate history: %w", err)
	}
	return records, nil
}

func scanHistory(row rowScanner) (notification.HistoryRecord, error) {
	var (
		rec              notification.HistoryRecord
		notificationType string
		status           string
		payload          []byte
		errMsg           sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&notificationType,
		&rec.Title,
		&rec.Body,
		&payload,
		&status,
		&errMsg,
		&rec.SentAt,
	)
	if err != nil {
		return notification.HistoryRecord{}, err
	}
	rec.NotificationType = notification.Type(notificationType)
	rec.Status = notification.Status(status)
	rec.ErrorMessage = errMsg.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.DataPayload); err != nil {
			return notification.HistoryRecord{}, fmt.Errorf("unmarshal data payload: %w", err)
		}
	}
	return rec, nil
}
