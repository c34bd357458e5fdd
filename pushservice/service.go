// Package pushservice assembles the push dispatch service: the HTTP API on
// the base server and, when a subscription is configured, the Pub/Sub
// trigger pipeline.
package pushservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-dispatch-service/internal/api"
	"github.com/tinywideclouds/go-push-dispatch-service/internal/history"
	"github.com/tinywideclouds/go-push-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch-service/internal/registry"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch-service/pushservice/config"
)

// Dependencies are the external collaborators the service is built on.
type Dependencies struct {
	Sender       dispatch.Sender
	TokenStore   dispatch.TokenStore
	HistoryStore dispatch.HistoryStore

	// Consumer feeds the trigger pipeline. Nil runs the API only.
	Consumer messagepipeline.MessageConsumer

	// AuthMiddleware guards the API routes. Nil leaves them open.
	AuthMiddleware func(http.Handler) http.Handler

	HealthChecks map[string]api.Checker
}

type Wrapper struct {
	*microservice.BaseServer
	Orchestrator    *pipeline.Orchestrator
	pipelineService *messagepipeline.StreamingService[pipeline.Trigger]
	logger          *slog.Logger
}

// New assembles the service.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Wrapper, error) {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	tokenRegistry := registry.New(deps.TokenStore, logger)
	recorder := history.NewRecorder(deps.HistoryStore, logger, history.WithDefaultLimit(cfg.HistoryDefaultLimit))
	batch := pipeline.NewBatchDispatcher(deps.Sender, logger)
	orchestrator := pipeline.NewOrchestrator(tokenRegistry, batch, recorder, logger)

	var streamingService *messagepipeline.StreamingService[pipeline.Trigger]
	if deps.Consumer != nil {
		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			deps.Consumer,
			pipeline.TriggerTransformer,
			pipeline.NewProcessor(orchestrator, logger),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	deviceAPI := api.NewDeviceAPI(tokenRegistry, logger)
	notifyAPI := api.NewNotifyAPI(orchestrator, logger)
	historyAPI := api.NewHistoryAPI(recorder, logger)
	healthAPI := api.NewHealthAPI(deps.HealthChecks)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)
	auth := deps.AuthMiddleware
	if auth == nil {
		logger.Warn("No auth middleware configured; API routes are unauthenticated")
		auth = func(h http.Handler) http.Handler { return h }
	}

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(auth(handlerFunc)))
	}

	// Devices
	handle("POST /api/v1/devices", deviceAPI.Register)
	handle("DELETE /api/v1/devices", deviceAPI.Unregister)
	handle("GET /api/v1/users/{userID}/devices", deviceAPI.ListForUser)
	handle("DELETE /api/v1/users/{userID}/devices", deviceAPI.DeleteAllForUser)

	// History
	handle("GET /api/v1/users/{userID}/history", historyAPI.ListForUser)

	// Triggers
	handle("POST /api/v1/notify/hot-deal", notifyAPI.HotDeal)
	handle("POST /api/v1/notify/order-confirm", notifyAPI.OrderConfirm)

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	mux.HandleFunc("GET /health", healthAPI.Health)

	return &Wrapper{
		BaseServer:      baseServer,
		Orchestrator:    orchestrator,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Trigger pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	} else {
		w.logger.Info("No trigger subscription configured; serving HTTP only")
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
