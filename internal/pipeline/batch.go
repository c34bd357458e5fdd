package pipeline

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

// BatchDispatcher sends one notification to a list of tokens, one at a time.
// Tokens are independent: a failure never stops the batch.
type BatchDispatcher struct {
	sender dispatch.Sender
	logger *slog.Logger
}

func NewBatchDispatcher(sender dispatch.Sender, logger *slog.Logger) *BatchDispatcher {
	return &BatchDispatcher{
		sender: sender,
		logger: logger.With("component", "BatchDispatcher"),
	}
}

// DispatchToTokens partitions tokens by send outcome. Each input token lands in
// exactly one bucket and bucket order follows input order.
func (b *BatchDispatcher) DispatchToTokens(
	ctx context.Context,
	tokens []string,
	title, body string,
	data notification.Data,
) notification.DispatchResult {
	result := notification.DispatchResult{
		Successful: []string{},
		Failed:     []notification.FailedToken{},
		Invalid:    []string{},
	}
	if len(tokens) == 0 {
		return result
	}

	for _, token := range tokens {
		outcome := b.sender.Send(ctx, token, title, body, data)
		switch outcome.Kind {
		case notification.OutcomeSuccess:
			result.Successful = append(result.Successful, token)
		case notification.OutcomeInvalidToken:
			result.Invalid = append(result.Invalid, token)
		default:
			result.Failed = append(result.Failed, notification.FailedToken{Token: token, Error: outcome.Detail})
		}
	}

	b.logger.Debug("Batch dispatched",
		"total", len(tokens),
		"successful", len(result.Successful),
		"failed", len(result.Failed),
		"invalid", len(result.Invalid),
	)
	return result
}
