package pipeline_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Typed Mocks ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, token, title, body string, data notification.Data) notification.Outcome {
	args := m.Called(ctx, token, title, body, data)
	return args.Get(0).(notification.Outcome)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) All(ctx context.Context) ([]notification.DeviceRegistration, error) {
	args := m.Called(ctx)
	regs, _ := args.Get(0).([]notification.DeviceRegistration)
	return regs, args.Error(1)
}

func (m *mockResolver) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	args := m.Called(ctx, userID)
	regs, _ := args.Get(0).([]notification.DeviceRegistration)
	return regs, args.Error(1)
}

// recordingHistory captures every row instead of persisting it.
type recordingHistory struct {
	records []notification.HistoryRecord
	err     error
}

func (h *recordingHistory) Record(
	_ context.Context,
	userID string,
	notificationType notification.Type,
	title, body string,
	data notification.Data,
	status notification.Status,
	errorMessage string,
) (notification.HistoryRecord, error) {
	if h.err != nil {
		return notification.HistoryRecord{}, h.err
	}
	rec := notification.HistoryRecord{
		UserID:           userID,
		NotificationType: notificationType,
		Title:            title,
		Body:             body,
		DataPayload:      data,
		Status:           status,
		ErrorMessage:     errorMessage,
	}
	h.records = append(h.records, rec)
	return rec, nil
}

func (h *recordingHistory) statusByUser() map[string]notification.Status {
	out := make(map[string]notification.Status)
	for _, r := range h.records {
		out[r.UserID] = r.Status
	}
	return out
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) SendHotDeal(ctx context.Context, deal notification.Deal) (notification.Summary, error) {
	args := m.Called(ctx, deal)
	return args.Get(0).(notification.Summary), args.Error(1)
}

func (m *mockOrchestrator) SendOrderConfirmation(ctx context.Context, userID string, order notification.Order) (notification.Summary, error) {
	args := m.Called(ctx, userID, order)
	return args.Get(0).(notification.Summary), args.Error(1)
}

func reg(userID, token string) notification.DeviceRegistration {
	return notification.DeviceRegistration{UserID: userID, DeviceToken: token, Platform: notification.PlatformAndroid}
}
