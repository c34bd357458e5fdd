package pipeline_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

func TestProcessor_Routing(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Routes hot deals to the broadcast", func(t *testing.T) {
		orch := new(mockOrchestrator)
		deal := notification.Deal{ID: "d-1", Title: "Deal"}
		orch.On("SendHotDeal", mock.Anything, deal).Return(notification.Summary{Sent: 3, TotalUsers: 2}, nil)

		processor := pipeline.NewProcessor(orch, logger)
		err := processor(ctx, messagepipeline.Message{}, &pipeline.Trigger{Type: notification.TypeHotDeal, Deal: &deal})

		require.NoError(t, err)
		orch.AssertExpectations(t)
		orch.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Routes order confirmations to the user", func(t *testing.T) {
		orch := new(mockOrchestrator)
		order := notification.Order{ID: "o-1", Status: "confirmed"}
		orch.On("SendOrderConfirmation", mock.Anything, "u1", order).Return(notification.Summary{NoTargets: true}, nil)

		processor := pipeline.NewProcessor(orch, logger)
		err := processor(ctx, messagepipeline.Message{}, &pipeline.Trigger{
			Type: notification.TypeOrderConfirm, UserID: "u1", Order: &order,
		})

		require.NoError(t, err)
		orch.AssertExpectations(t)
	})

	t.Run("Dispatch failures are acknowledged", func(t *testing.T) {
		orch := new(mockOrchestrator)
		deal := notification.Deal{ID: "d-2", Title: "Deal"}
		orch.On("SendHotDeal", mock.Anything, deal).Return(notification.Summary{}, assert.AnError)

		processor := pipeline.NewProcessor(orch, logger)
		err := processor(ctx, messagepipeline.Message{}, &pipeline.Trigger{Type: notification.TypeHotDeal, Deal: &deal})

		require.NoError(t, err)
		orch.AssertExpectations(t)
	})
}
