package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// Notifier runs the broadcast and targeted dispatch flows.
type Notifier interface {
	SendHotDeal(ctx context.Context, deal notification.Deal) (notification.Summary, error)
	SendOrderConfirmation(ctx context.Context, userID string, order notification.Order) (notification.Summary, error)
}

type NotifyAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewNotifyAPI(notifier Notifier, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "NotifyAPI"),
	}
}

type HotDealRequest struct {
	Deal notification.Deal `json:"deal" validate:"required"`
}

type OrderConfirmRequest struct {
	UserID string             `json:"user_id" validate:"required"`
	Order  notification.Order `json:"order" validate:"required"`
}

// SummaryResponse is the wire form of a dispatch summary. Fields that do not
// apply to the flow are omitted. InvalidRegistrations stay registered until
// the caller unregisters them.
type SummaryResponse struct {
	Sent                 int                     `json:"sent"`
	Failed               int                     `json:"failed"`
	InvalidTokens        *int                    `json:"invalidTokens,omitempty"`
	TotalUsers           *int                    `json:"totalUsers,omitempty"`
	InvalidRegistrations []notification.TokenRef `json:"invalidRegistrations,omitempty"`
}

// HotDeal handles POST /api/v1/notify/hot-deal.
func (api *NotifyAPI) HotDeal(w http.ResponseWriter, r *http.Request) {
	var req HotDealRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := api.Notifier.SendHotDeal(r.Context(), req.Deal)
	if err != nil {
		api.Logger.Error("HotDeal: dispatch failed", "deal_id", req.Deal.ID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeOK(w, "Hot deal notifications sent", renderSummary(summary, true))
}

// OrderConfirm handles POST /api/v1/notify/order-confirm.
func (api *NotifyAPI) OrderConfirm(w http.ResponseWriter, r *http.Request) {
	var req OrderConfirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	summary, err := api.Notifier.SendOrderConfirmation(r.Context(), req.UserID, req.Order)
	if err != nil {
		api.Logger.Error("OrderConfirm: dispatch failed", "user_id", req.UserID, "order_id", req.Order.ID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeOK(w, "Order confirmation notification sent", renderSummary(summary, false))
}

func renderSummary(s notification.Summary, broadcast bool) SummaryResponse {
	out := SummaryResponse{Sent: s.Sent, Failed: s.Failed}
	if s.NoTargets {
		return out
	}
	invalid := s.InvalidTokens
	out.InvalidTokens = &invalid
	out.InvalidRegistrations = s.InvalidRegistrations
	if broadcast {
		users := s.TotalUsers
		out.TotalUsers = &users
	}
	return out
}
