// Package registry owns the mapping from users to their registered device
// tokens.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Registry validates registration input and delegates persistence to a
// TokenStore.
type Registry struct {
	store  dispatch.TokenStore
	logger *slog.Logger
}

func New(store dispatch.TokenStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With("component", "TokenRegistry"),
	}
}

// Upsert creates the registration or refreshes the platform and timestamp of
// an existing (userID, deviceToken) pair.
func (r *Registry) Upsert(ctx context.Context, userID, deviceToken, platform string) (notification.DeviceRegistration, error) {
	p, err := notification.ParsePlatform(platform)
	if err != nil {
		return notification.DeviceRegistration{}, err
	}

	reg, err := r.store.Upsert(ctx, userID, deviceToken, p)
	if err != nil {
		r.logger.Error("Error upserting device token", "user_id", userID, "err", err)
		return notification.DeviceRegistration{}, fmt.Errorf("upsert device token: %w", err)
	}
	r.logger.Info("Device token registered", "user_id", userID, "platform", p)
	return reg, nil
}

// FindByUser returns an empty slice when the user has no registrations.
func (r *Registry) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	regs, err := r.store.FindByUser(ctx, userID)
	if err != nil {
		r.logger.Error("Error finding device tokens by user", "user_id", userID, "err", err)
		return nil, fmt.Errorf("find device tokens for user %s: %w", userID, err)
	}
	return nonNil(regs), nil
}

// FindByUsers is the bulk variant of FindByUser. An empty input never reaches
// the store.
func (r *Registry) FindByUsers(ctx context.Context, userIDs []string) ([]notification.DeviceRegistration, error) {
	if len(userIDs) == 0 {
		return []notification.DeviceRegistration{}, nil
	}
	regs, err := r.store.FindByUsers(ctx, userIDs)
	if err != nil {
		r.logger.Error("Error finding device tokens by users", "user_count", len(userIDs), "err", err)
		return nil, fmt.Errorf("find device tokens for %d users: %w", len(userIDs), err)
	}
	return nonNil(regs), nil
}

// DeleteOne returns the removed registration, or nil when none matched.
func (r *Registry) DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error) {
	reg, err := r.store.DeleteOne(ctx, userID, deviceToken)
	if err != nil {
		r.logger.Error("Error deleting device token", "user_id", userID, "err", err)
		return nil, fmt.Errorf("delete device token: %w", err)
	}
	if reg != nil {
		r.logger.Info("Device token deleted", "user_id", userID)
	}
	return reg, nil
}

func (r *Registry) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := r.store.DeleteAllForUser(ctx, userID); err != nil {
		r.logger.Error("Error deleting all device tokens for user", "user_id", userID, "err", err)
		return fmt.Errorf("delete device tokens for user %s: %w", userID, err)
	}
	r.logger.Info("All device tokens deleted", "user_id", userID)
	return nil
}

// All is a full scan used by broadcasts. It materialises every registration.
func (r *Registry) All(ctx context.Context) ([]notification.DeviceRegistration, error) {
	regs, err := r.store.All(ctx)
	if err != nil {
		r.logger.Error("Error getting all device tokens", "err", err)
		return nil, fmt.Errorf("list all device tokens: %w", err)
	}
	return nonNil(regs), nil
}

func nonNil(regs []notification.DeviceRegistration) []notification.DeviceRegistration {
	if regs == nil {
		return []notification.DeviceRegistration{}
	}
	return regs
}
