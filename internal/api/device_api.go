package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// DeviceRegistry is the part of the token registry the device endpoints use.
type DeviceRegistry interface {
	Upsert(ctx context.Context, userID, deviceToken, platform string) (notification.DeviceRegistration, error)
	FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error)
	DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error)
	DeleteAllForUser(ctx context.Context, userID string) error
}

type DeviceAPI struct {
	Registry DeviceRegistry
	Logger   *slog.Logger
}

func NewDeviceAPI(registry DeviceRegistry, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Registry: registry,
		Logger:   logger.With("component", "DeviceAPI"),
	}
}

type RegisterDeviceRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	DeviceToken string `json:"device_token" validate:"required"`
	Platform    string `json:"platform" validate:"required,oneof=ios android"`
}

type UnregisterDeviceRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	DeviceToken string `json:"device_token" validate:"required"`
}

// Register handles POST /api/v1/devices.
func (api *DeviceAPI) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reg, err := api.Registry.Upsert(r.Context(), req.UserID, req.DeviceToken, req.Platform)
	if errors.Is(err, notification.ErrInvalidPlatform) {
		api.Logger.Warn("Register: rejected platform", "user_id", req.UserID, "platform", req.Platform)
		response.WriteJSONError(w, http.StatusBadRequest, notification.ErrInvalidPlatform.Error())
		return
	}
	if err != nil {
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	writeOK(w, "Device token registered successfully", reg)
}

// Unregister handles DELETE /api/v1/devices.
func (api *DeviceAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterDeviceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	removed, err := api.Registry.DeleteOne(r.Context(), req.UserID, req.DeviceToken)
	if err != nil {
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	if removed == nil {
		response.WriteJSONError(w, http.StatusNotFound, "Device token not found")
		return
	}

	writeOK(w, "Device token unregistered successfully", nil)
}

// ListForUser handles GET /api/v1/users/{userID}/devices.
func (api *DeviceAPI) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	regs, err := api.Registry.FindByUser(r.Context(), userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	writeOK(w, "", regs)
}

// DeleteAllForUser handles DELETE /api/v1/users/{userID}/devices. It is
// used on account removal and succeeds for users with no devices.
func (api *DeviceAPI) DeleteAllForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := api.Registry.DeleteAllForUser(r.Context(), userID); err != nil {
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Removed all devices for user", "user_id", userID)

	w.WriteHeader(http.StatusNoContent)
}
