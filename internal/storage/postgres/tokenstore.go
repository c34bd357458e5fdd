package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const (
	upsertTokenQuery = `
		INSERT INTO device_tokens (user_id, device_token, platform, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, device_token)
		DO UPDATE SET
			platform = EXCLUDED.platform,
			updated_at = CURRENT_TIMESTAMP
		RETURNING user_id, device_token, platform, created_at, updated_at`

	findTokensByUserQuery = `
		SELECT user_id, device_token, platform, created_at, updated_at
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY created_at`

	findTokensByUsersQuery = `
		SELECT user_id, device_token, platform, created_at, updated_at
		FROM device_tokens
		WHERE user_id = ANY($1::text[])
		ORDER BY user_id, created_at`

	deleteTokenQuery = `
		DELETE FROM device_tokens
		WHERE user_id = $1 AND device_token = $2
		RETURNING user_id, device_token, platform, created_at, updated_at`

	deleteUserTokensQuery = `DELETE FROM device_tokens WHERE user_id = $1`

	allTokensQuery = `
		SELECT user_id, device_token, platform, created_at, updated_at
		FROM device_tokens
		ORDER BY user_id, created_at`
)

// TokenStore implements dispatch.TokenStore on the device_tokens table.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (notification.DeviceRegistration, error) {
	var (
		reg      notification.DeviceRegistration
		platform string
	)
	if err := row.Scan(&reg.UserID, &reg.DeviceToken, &platform, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return notification.DeviceRegistration{}, err
	}
	reg.Platform = notification.Platform(platform)
	return reg, nil
}

func (s *TokenStore) Upsert(ctx context.Context, userID, deviceToken string, platform notification.Platform) (notification.DeviceRegistration, error) {
	row := s.db.QueryRowContext(ctx, upsertTokenQuery, userID, deviceToken, string(platform))
	reg, err := scanRegistration(row)
	if err != nil {
		return notification.DeviceRegistration{}, fmt.Errorf("postgres upsert token: %w", err)
	}
	return reg, nil
}

func (s *TokenStore) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	return s.query(ctx, findTokensByUserQuery, userID)
}

// FindByUsers passes the ids as a text[] parameter.
func (s *TokenStore) FindByUsers(ctx context.Context, userIDs []string) ([]notification.DeviceRegistration, error) {
	if len(userIDs) == 0 {
		return []notification.DeviceRegistration{}, nil
	}
	return s.query(ctx, findTokensByUsersQuery, userIDs)
}

func (s *TokenStore) DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error) {
	row := s.db.QueryRowContext(ctx, deleteTokenQuery, userID, deviceToken)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres delete token: %w", err)
	}
	return &reg, nil
}

func (s *TokenStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, deleteUserTokensQuery, userID); err != nil {
		return fmt.Errorf("postgres delete user tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) All(ctx context.Context) ([]notification.DeviceRegistration, error) {
	return s.query(ctx, allTokensQuery)
}

// Ping reports whether the database is reachable.
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *TokenStore) query(ctx context.Context, query string, args ...any) ([]notification.DeviceRegistration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query tokens: %w", err)
	}
	defer rows.Close()

	regs := make([]notification.DeviceRegistration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan token: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres iterate tokens: %w", err)
	}
	return regs, nil
}
