package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const (
	defaultDealTitle = "Hot Deal of the Day!"
	defaultDealBody  = "Check out this amazing deal!"
	orderTitle       = "Order Confirmed!"
	sendFailedMsg    = "Send failed"
)

// TargetResolver resolves dispatch targets to registrations.
type TargetResolver interface {
	All(ctx context.Context) ([]notification.DeviceRegistration, error)
	FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error)
}

// HistoryRecorder persists one audit row.
type HistoryRecorder interface {
	Record(
		ctx context.Context,
		userID string,
		notificationType notification.Type,
		title, body string,
		data notification.Data,
		status notification.Status,
		errorMessage string,
	) (notification.HistoryRecord, error)
}

// Orchestrator is the entry point for each notification type.
// It holds no per-call state; one dispatch runs to completion on the caller's
// goroutine.
type Orchestrator struct {
	targets    TargetResolver
	dispatcher *BatchDispatcher
	history    HistoryRecorder
	logger     *slog.Logger
}

func NewOrchestrator(targets TargetResolver, dispatcher *BatchDispatcher, history HistoryRecorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		targets:    targets,
		dispatcher: dispatcher,
		history:    history,
		logger:     logger.With("component", "Orchestrator"),
	}
}

// SendHotDeal broadcasts a deal to every registered device and records one
// history row per user.
func (o *Orchestrator) SendHotDeal(ctx context.Context, deal notification.Deal) (notification.Summary, error) {
	regs, err := o.targets.All(ctx)
	if err != nil {
		o.logger.Error("Error sending hot deal notification", "deal_id", deal.ID, "err", err)
		return notification.Summary{}, err
	}
	if len(regs) == 0 {
		o.logger.Info("No device tokens found for hot deal notification", "deal_id", deal.ID)
		return notification.Summary{NoTargets: true}, nil
	}

	title, body, data := hotDealContent(deal)

	tokens := make([]string, len(regs))
	for i, reg := range regs {
		tokens[i] = reg.DeviceToken
	}
	result := o.dispatcher.DispatchToTokens(ctx, tokens, title, body, data)
	successful := toSet(result.Successful)

	// Users in first-seen order, with per-user success.
	var userIDs []string
	delivered := make(map[string]bool)
	for _, reg := range regs {
		ok, seen := delivered[reg.UserID]
		if !seen {
			userIDs = append(userIDs, reg.UserID)
		}
		delivered[reg.UserID] = ok || successful[reg.DeviceToken]
	}

	for _, userID := range userIDs {
		status, errMsg := statusFor(delivered[userID])
		if _, err := o.history.Record(ctx, userID, notification.TypeHotDeal, title, body, data, status, errMsg); err != nil {
			o.logger.Error("Error sending hot deal notification", "deal_id", deal.ID, "user_id", userID, "err", err)
			return notification.Summary{}, err
		}
	}

	o.logger.Info(fmt.Sprintf("Hot deal notification: %d sent, %d failed", len(result.Successful), len(result.Failed)),
		"deal_id", deal.ID,
		"invalid", len(result.Invalid),
		"users", len(userIDs),
	)

	return notification.Summary{
		Sent:                 len(result.Successful),
		Failed:               len(result.Failed),
		InvalidTokens:        len(result.Invalid),
		TotalUsers:           len(userIDs),
		InvalidRegistrations: invalidRefs(regs, result.Invalid),
	}, nil
}

// SendOrderConfirmation notifies one user's devices and records one history
// row per device token.
func (o *Orchestrator) SendOrderConfirmation(ctx context.Context, userID string, order notification.Order) (notification.Summary, error) {
	regs, err := o.targets.FindByUser(ctx, userID)
	if err != nil {
		o.logger.Error("Error sending order confirmation notification", "user_id", userID, "err", err)
		return notification.Summary{}, err
	}
	if len(regs) == 0 {
		o.logger.Info("No device tokens found for user", "user_id", userID)
		return notification.Summary{NoTargets: true}, nil
	}

	title := orderTitle
	body := fmt.Sprintf("Your order #%s has been confirmed", order.ID)
	data := notification.Data{
		"type":         string(notification.TypeOrderConfirm),
		"order_id":     order.ID,
		"order_status": order.Status,
	}

	tokens := make([]string, len(regs))
	for i, reg := range regs {
		tokens[i] = reg.DeviceToken
	}
	result := o.dispatcher.DispatchToTokens(ctx, tokens, title, body, data)
	successful := toSet(result.Successful)

	for _, reg := range regs {
		status, errMsg := statusFor(successful[reg.DeviceToken])
		if _, err := o.history.Record(ctx, userID, notification.TypeOrderConfirm, title, body, data, status, errMsg); err != nil {
			o.logger.Error("Error sending order confirmation notification", "user_id", userID, "err", err)
			return notification.Summary{}, err
		}
	}

	o.logger.Info(fmt.Sprintf("Order confirmation notification: %d sent, %d failed", len(result.Successful), len(result.Failed)),
		"user_id", userID,
		"order_id", order.ID,
		"invalid", len(result.Invalid),
	)

	return notification.Summary{
		Sent:                 len(result.Successful),
		Failed:               len(result.Failed),
		InvalidTokens:        len(result.Invalid),
		InvalidRegistrations: invalidRefs(regs, result.Invalid),
	}, nil
}

func hotDealContent(deal notification.Deal) (string, string, notification.Data) {
	title := deal.Title
	if title == "" {
		title = defaultDealTitle
	}
	body := deal.Description
	if body == "" {
		body = defaultDealBody
	}

	data := notification.Data{
		"type":       string(notification.TypeHotDeal),
		"deal_id":    deal.ID,
		"deal_title": deal.Title,
	}
	if present(deal.VendorID) {
		data["vendor_id"] = deal.VendorID
	}
	if present(deal.Discount) {
		data["discount"] = deal.Discount
	}
	if present(deal.ExpiresAt) {
		data["expires_at"] = deal.ExpiresAt
	}
	return title, body, data
}

// present reports whether an optional deal field carries a value. Empty
// strings, zero numbers and false count as absent.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}

func statusFor(delivered bool) (notification.Status, string) {
	if delivered {
		return notification.StatusSent, ""
	}
	return notification.StatusFailed, sendFailedMsg
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func invalidRefs(regs []notification.DeviceRegistration, invalid []string) []notification.TokenRef {
	if len(invalid) == 0 {
		return nil
	}
	bad := toSet(invalid)
	var refs []notification.TokenRef
	for _, reg := range regs {
		if bad[reg.DeviceToken] {
			refs = append(refs, notification.TokenRef{UserID: reg.UserID, DeviceToken: reg.DeviceToken})
		}
	}
	return refs
}
