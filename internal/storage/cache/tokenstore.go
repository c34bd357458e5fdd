// Package cache adds a Redis read-aside layer in front of a token store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Client is the subset of Redis commands the decorator needs.
type Client interface {
	// Get returns ErrMiss when the key holds nothing usable.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedTokenStore caches per-user lookups and invalidates them on every
// write for that user. Broadcast reads and multi-user reads go straight to
// the underlying store.
type CachedTokenStore struct {
	store  dispatch.TokenStore
	cache  Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTokenStore(store dispatch.TokenStore, cache Client, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedTokenStore) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	key := cacheKey(userID)

	var cached []notification.DeviceRegistration
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		if cached == nil {
			cached = []notification.DeviceRegistration{}
		}
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		s.logger.Warn("Cache read failed, falling back to store", "user_id", userID, "err", err)
	}

	fresh, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A failed fill only costs the next lookup a trip to the store.
	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.logger.Warn("Failed to cache user registrations", "user_id", userID, "err", err)
	}
	return fresh, nil
}

func (s *CachedTokenStore) FindByUsers(ctx context.Context, userIDs []string) ([]notification.DeviceRegistration, error) {
	return s.store.FindByUsers(ctx, userIDs)
}

func (s *CachedTokenStore) All(ctx context.Context) ([]notification.DeviceRegistration, error) {
	return s.store.All(ctx)
}

func (s *CachedTokenStore) Upsert(ctx context.Context, userID, deviceToken string, platform notification.Platform) (notification.DeviceRegistration, error) {
	reg, err := s.store.Upsert(ctx, userID, deviceToken, platform)
	if err != nil {
		return notification.DeviceRegistration{}, err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		return notification.DeviceRegistration{}, err
	}
	return reg, nil
}

// DeleteOne must clear the cache even when the store write succeeded, or a
// removed device keeps receiving notifications until the TTL expires.
func (s *CachedTokenStore) DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error) {
	reg, err := s.store.DeleteOne(ctx, userID, deviceToken)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *CachedTokenStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Del(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("invalidate cached registrations: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("push:tokens:%s", userID)
}
