package payments

import (
	"context"
	"sync"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/internal/app/system"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// FulfillmentRunner watches paid requests and completes the due ones. A
// failed attempt is rescheduled rather than dropped, so fulfillment is
// never silently lost. With AutoFulfill enabled every paid request is
// completed once its delay elapses, with no external confirmation; that
// mode exists for demos and tests only.
type FulfillmentRunner struct {
	store    storage.RequestStore
	service  *Service
	delay    time.Duration
	interval time.Duration
	auto     bool
	log      *logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[string]time.Time
	explicit    map[string]bool // queued by an explicit fulfill command
}

var _ system.Service = (*FulfillmentRunner)(nil)

// RunnerConfig configures the fulfillment runner.
type RunnerConfig struct {
	// Delay between payment and completion when auto-fulfilling.
	Delay time.Duration
	// Interval between queue sweeps.
	Interval time.Duration
	// AutoFulfill completes every paid request after Delay (demo mode).
	AutoFulfill bool
}

// NewFulfillmentRunner builds a runner over the paid-request queue.
func NewFulfillmentRunner(store storage.RequestStore, service *Service, cfg RunnerConfig, log *logger.Logger) *FulfillmentRunner {
	if log == nil {
		log = logger.NewDefault("fulfillment")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &FulfillmentRunner{
		store:       store,
		service:     service,
		delay:       cfg.Delay,
		interval:    cfg.Interval,
		auto:        cfg.AutoFulfill,
		log:         log,
		nextAttempt: make(map[string]time.Time),
		explicit:    make(map[string]bool),
	}
}

func (r *FulfillmentRunner) Name() string { return "fulfillment" }

// Enqueue schedules an explicit fulfillment for a request. Used when the
// creator confirms delivery; the runner retries until it applies.
func (r *FulfillmentRunner) Enqueue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explicit[id] = true
	delete(r.nextAttempt, id)
}

// Start begins the sweep loop.
func (r *FulfillmentRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("fulfillment runner started")
	return nil
}

// Stop halts the loop and clears all scheduled work.
func (r *FulfillmentRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.nextAttempt = make(map[string]time.Time)
	r.explicit = make(map[string]bool)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (r *FulfillmentRunner) tick(ctx context.Context) {
	paid, err := r.store.ListPaidRequests(ctx)
	if err != nil {
		r.log.WithError(err).Warn("list paid requests failed")
		return
	}

	now := time.Now()
	for _, req := range paid {
		if !r.shouldAttempt(req, now) {
			continue
		}

		if _, _, err := r.service.Fulfill(ctx, req.ID); err != nil {
			r.log.WithError(err).Warnf("fulfill request %s failed; rescheduling", req.ID)
			r.scheduleNext(req.ID, r.interval*4)
			continue
		}
		r.log.Infof("request %s completed", req.ID)
		r.clearSchedule(req.ID)
	}
}

func (r *FulfillmentRunner) shouldAttempt(req collab.Request, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if next, ok := r.nextAttempt[req.ID]; ok && now.Before(next) {
		return false
	}
	if r.explicit[req.ID] {
		return true
	}
	if !r.auto {
		return false
	}
	return !now.Before(req.UpdatedAt.Add(r.delay))
}

func (r *FulfillmentRunner) scheduleNext(id string, after time.Duration) {
	r.mu.Lock()
	r.nextAttempt[id] = time.Now().Add(after)
	r.mu.Unlock()
}

func (r *FulfillmentRunner) clearSchedule(id string) {
	r.mu.Lock()
	delete(r.nextAttempt, id)
	delete(r.explicit, id)
	r.mu.Unlock()
}
