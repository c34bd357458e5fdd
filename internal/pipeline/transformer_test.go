package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

func TestTriggerTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		payload               string
		expectError           bool
		expectedErrorContains string
		expectedType          notification.Type
	}{
		{
			name:         "Happy Path - Hot Deal",
			payload:      `{"type":"hot_deal","deal":{"id":"deal_001","title":"50% Off","discount":50}}`,
			expectedType: notification.TypeHotDeal,
		},
		{
			name:         "Happy Path - Order Confirm",
			payload:      `{"type":"order_confirm","user_id":"u1","order":{"id":"o1","status":"confirmed"}}`,
			expectedType: notification.TypeOrderConfirm,
		},
		{
			name:                  "Failure - Malformed JSON",
			payload:               "not-json",
			expectError:           true,
			expectedErrorContains: "failed to unmarshal trigger",
		},
		{
			name:                  "Failure - Unknown type",
			payload:               `{"type":"newsletter"}`,
			expectError:           true,
			expectedErrorContains: "unknown trigger type",
		},
		{
			name:                  "Failure - Deal without title",
			payload:               `{"type":"hot_deal","deal":{"id":"deal_002"}}`,
			expectError:           true,
			expectedErrorContains: "invalid trigger",
		},
		{
			name:                  "Failure - Order without user",
			payload:               `{"type":"order_confirm","order":{"id":"o1","status":"confirmed"}}`,
			expectError:           true,
			expectedErrorContains: "requires user_id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-1", Payload: []byte(tc.payload)},
			}

			trigger, skip, err := pipeline.TriggerTransformer(ctx, msg)

			if tc.expectError {
				require.Error(t, err)
				assert.False(t, skip, "rejected triggers must reach the nack path")
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			assert.Equal(t, tc.expectedType, trigger.Type)
		})
	}
}
