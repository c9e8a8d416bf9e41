package app

import (
	"context"
	"fmt"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/services/insights"
	paymentsvc "github.com/CollabMarket/collab_engine/internal/app/services/payments"
	requestsvc "github.com/CollabMarket/collab_engine/internal/app/services/requests"
	syncsvc "github.com/CollabMarket/collab_engine/internal/app/services/sync"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/internal/app/storage/memory"
	"github.com/CollabMarket/collab_engine/internal/app/system"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Requests storage.RequestStore
	Payments storage.PaymentStore
	Posts    storage.PostStore
}

// Options tunes the background services.
type Options struct {
	// ActorID identifies the local user the engine acts for.
	ActorID string
	// Role is the local user's side of the marketplace.
	Role collab.Role
	// Fulfillment configures the paid-request completion runner.
	Fulfillment paymentsvc.RunnerConfig
	// Sync configures stream recovery and the periodic resync job.
	Sync syncsvc.Config
	// BucketMapping overrides the content-type grouping used by insights.
	// Nil keeps the defaults.
	BucketMapping map[string]string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Requests     *requestsvc.Service
	Payments     *paymentsvc.Service
	Insights     *insights.Service
	Synchronizer *syncsvc.Synchronizer
	Fulfillment  *paymentsvc.FulfillmentRunner
}

// New builds a fully initialised application over the given gateway.
func New(gw gateway.Gateway, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if gw == nil {
		return nil, fmt.Errorf("app: gateway is required")
	}
	if opts.ActorID == "" {
		return nil, fmt.Errorf("app: actor id is required")
	}
	if opts.Role != collab.RoleBusiness && opts.Role != collab.RoleInfluencer {
		return nil, fmt.Errorf("app: unknown role %q", opts.Role)
	}

	mem := memory.New()
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}
	if stores.Posts == nil {
		stores.Posts = mem
	}

	manager := system.NewManager()

	reqService := requestsvc.New(stores.Requests, gw, opts.ActorID, opts.Role, log)
	payService := paymentsvc.New(reqService, stores.Payments, stores.Posts, gw, log)
	insightService := insights.New(reqService, stores.Payments, stores.Posts, opts.BucketMapping, log)
	synchronizer := syncsvc.New(reqService, gw, opts.Sync, log)
	fulfillment := paymentsvc.NewFulfillmentRunner(stores.Requests, payService, opts.Fulfillment, log)

	for _, svc := range []system.Service{synchronizer, fulfillment} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Requests:     reqService,
		Payments:     payService,
		Insights:     insightService,
		Synchronizer: synchronizer,
		Fulfillment:  fulfillment,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start loads the initial request set and begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Requests.Reload(ctx); err != nil {
		a.log.WithError(err).Warn("initial load failed; starting from local cache")
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
