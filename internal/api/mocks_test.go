package api_test

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

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Upsert(ctx context.Context, userID, deviceToken, platform string) (notification.DeviceRegistration, error) {
	args := m.Called(ctx, userID, deviceToken, platform)
	return args.Get(0).(notification.DeviceRegistration), args.Error(1)
}

func (m *MockRegistry) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	args := m.Called(ctx, userID)
	regs, _ := args.Get(0).([]notification.DeviceRegistration)
	return regs, args.Error(1)
}

func (m *MockRegistry) DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error) {
	args := m.Called(ctx, userID, deviceToken)
	reg, _ := args.Get(0).(*notification.DeviceRegistration)
	return reg, args.Error(1)
}

func (m *MockRegistry) DeleteAllForUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendHotDeal(ctx context.Context, deal notification.Deal) (notification.Summary, error) {
	args := m.Called(ctx, deal)
	return args.Get(0).(notification.Summary), args.Error(1)
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, userID string, order notification.Order) (notification.Summary, error) {
	args := m.Called(ctx, userID, order)
	return args.Get(0).(notification.Summary), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListForUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error) {
	args := m.Called(ctx, userID, limit)
	recs, _ := args.Get(0).([]notification.HistoryRecord)
	return recs, args.Error(1)
}
