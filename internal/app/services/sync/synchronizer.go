// Package sync keeps the local request cache aligned with the remote store.
// It consumes the gateway's push streams, merges remote changes into the
// request service, emits notifications for observed status transitions, and
// falls back to periodic full reloads when the push channel degrades.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/notification"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/metrics"
	"github.com/CollabMarket/collab_engine/internal/app/services/requests"
	"github.com/CollabMarket/collab_engine/pkg/logger"
	"github.com/CollabMarket/collab_engine/supabase/client"
)

// Config controls stream recovery and the periodic resync job.
type Config struct {
	// Resubscribe shapes the backoff between reconnection attempts after
	// the push channel drops.
	Resubscribe client.RetryConfig

	// ResyncSchedule is a cron spec (for example "@every 5m") for the
	// periodic full reload that catches events missed while degraded.
	// Empty disables the job.
	ResyncSchedule string
}

// DefaultConfig returns the recovery settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Resubscribe:    client.DefaultRetryConfig(),
		ResyncSchedule: "@every 5m",
	}
}

// Synchronizer subscribes to the gateway's push streams and applies remote
// changes to the local request cache. It implements system.Service.
type Synchronizer struct {
	requests *requests.Service
	gw       gateway.Gateway
	cfg      Config
	log      *logger.Logger

	mu       sync.Mutex
	healthy  bool
	started  bool
	subs     []gateway.Subscription
	onNotify []func(notification.Notification)
	onState  []func(healthy bool)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a synchronizer over the given request service and gateway.
func New(reqs *requests.Service, gw gateway.Gateway, cfg Config, log *logger.Logger) *Synchronizer {
	if log == nil {
		log = logger.NewDefault("sync")
	}
	cfg.Resubscribe = normalizeRetry(cfg.Resubscribe)
	return &Synchronizer{
		requests: reqs,
		gw:       gw,
		cfg:      cfg,
		log:      log,
	}
}

// normalizeRetry fills zero-valued backoff fields from the client defaults
// so a partially specified config still converges.
func normalizeRetry(cfg client.RetryConfig) client.RetryConfig {
	def := client.DefaultRetryConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	return cfg
}

// Name implements system.Service.
func (s *Synchronizer) Name() string { return "sync" }

// OnNotification registers a consumer for notifications produced from
// observed status transitions. Must be called before Start.
func (s *Synchronizer) OnNotification(fn func(notification.Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNotify = append(s.onNotify, fn)
}

// OnStateChange registers a consumer for connectivity state changes. Must be
// called before Start.
func (s *Synchronizer) OnStateChange(fn func(healthy bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, fn)
}

// Healthy reports whether the push channel is currently live.
func (s *Synchronizer) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Start opens the push subscriptions and launches the resync job.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("sync: already started")
	}
	s.started = true
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if notifier, ok := s.gw.(gateway.StreamNotifier); ok {
		notifier.OnStreamClose(func(err error) {
			if err == nil {
				return
			}
			s.log.WithError(err).Warn("push channel dropped")
			s.setHealthy(false)
			s.wg.Add(1)
			go s.recover(runCtx)
		})
	}

	if err := s.subscribe(ctx); err != nil {
		cancel()
		return err
	}
	s.setHealthy(true)

	if s.cfg.ResyncSchedule != "" {
		schedule, err := cron.ParseStandard(s.cfg.ResyncSchedule)
		if err != nil {
			cancel()
			return fmt.Errorf("sync: invalid resync schedule %q: %w", s.cfg.ResyncSchedule, err)
		}
		s.wg.Add(1)
		go s.resyncLoop(runCtx, schedule)
	}
	return nil
}

// Stop closes the subscriptions and waits for background work to drain.
func (s *Synchronizer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			s.log.WithError(err).Warn("closing subscription")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subscribe opens exactly one subscription per stream kind.
func (s *Synchronizer) subscribe(ctx context.Context) error {
	reqSub, err := s.gw.SubscribeRequests(ctx, s.requests.ActorID(), s.requests.Role(), s.handleRequestEvent)
	if err != nil {
		return fmt.Errorf("sync: subscribing to requests: %w", err)
	}
	noteSub, err := s.gw.SubscribeNotifications(ctx, s.requests.ActorID(), s.emit)
	if err != nil {
		reqSub.Close()
		return fmt.Errorf("sync: subscribing to notifications: %w", err)
	}

	s.mu.Lock()
	s.subs = []gateway.Subscription{reqSub, noteSub}
	s.mu.Unlock()
	return nil
}

// handleRequestEvent merges one pushed change into the local cache. The
// remote row is authoritative for updates and inserts; deletes trigger a
// full reload because the event does not say which rows remain.
func (s *Synchronizer) handleRequestEvent(ev gateway.RequestEvent) {
	ctx := context.Background()
	switch ev.Type {
	case gateway.EventUpdate:
		prev, known, err := s.requests.ApplyRemote(ctx, ev.Request)
		if err != nil {
			s.log.WithError(err).WithField("request_id", ev.Request.ID).Error("applying remote update")
			return
		}
		metrics.RecordSyncEvent("update")
		if known && prev.Status != ev.Request.Status {
			s.notifyTransition(prev.Status, ev.Request)
		}
	case gateway.EventInsert:
		if _, _, err := s.requests.ApplyRemote(ctx, ev.Request); err != nil {
			s.log.WithError(err).WithField("request_id", ev.Request.ID).Error("applying remote insert")
			if err := s.requests.Reload(ctx); err != nil {
				s.log.WithError(err).Error("reloading after failed insert merge")
			}
			return
		}
		metrics.RecordSyncEvent("insert")
	case gateway.EventDelete:
		metrics.RecordSyncEvent("delete")
		if err := s.requests.Reload(ctx); err != nil {
			s.log.WithError(err).Error("reloading after remote delete")
		}
	default:
		s.log.WithField("type", string(ev.Type)).Warn("unrecognized change event")
	}
}

// notifyTransition builds and fans out the notification for one observed
// status change.
func (s *Synchronizer) notifyTransition(from collab.Status, req collab.Request) {
	s.emit(notification.Notification{
		ID:         uuid.NewString(),
		UserID:     s.requests.ActorID(),
		RequestID:  req.ID,
		FromStatus: from,
		ToStatus:   req.Status,
		Message:    notification.TransitionMessage(from, req.Status),
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *Synchronizer) emit(n notification.Notification) {
	s.mu.Lock()
	handlers := make([]func(notification.Notification), len(s.onNotify))
	copy(handlers, s.onNotify)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(n)
	}
}

// recover reopens the subscriptions with exponential backoff, then reloads
// the cache to cover the outage window.
func (s *Synchronizer) recover(ctx context.Context) {
	defer s.wg.Done()

	for attempt := 0; ; attempt++ {
		if attempt >= s.cfg.Resubscribe.MaxRetries {
			s.log.WithField("attempts", attempt).Error("giving up on push channel; periodic resync remains active")
			return
		}
		wait := s.cfg.Resubscribe.BackoffFor(attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := s.reconnect(ctx); err != nil {
			s.log.WithError(err).WithField("attempt", attempt+1).Warn("resubscribe failed")
			continue
		}
		metrics.RecordSyncReconnect()
		s.setHealthy(true)
		if err := s.requests.Reload(ctx); err != nil {
			s.log.WithError(err).Warn("reload after reconnect")
		}
		return
	}
}

// reconnect tears down stale subscriptions and opens fresh ones.
func (s *Synchronizer) reconnect(ctx context.Context) error {
	s.mu.Lock()
	stale := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range stale {
		sub.Close()
	}

	type connector interface {
		Connect(ctx context.Context) error
	}
	if c, ok := s.gw.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	return s.subscribe(ctx)
}

// resyncLoop runs the scheduled full reload.
func (s *Synchronizer) resyncLoop(ctx context.Context, schedule cron.Schedule) {
	defer s.wg.Done()
	for {
		next := schedule.Next(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		if err := s.requests.Reload(ctx); err != nil {
			s.log.WithError(err).Warn("periodic resync failed")
			continue
		}
		metrics.RecordSyncEvent("resync")
	}
}

func (s *Synchronizer) setHealthy(v bool) {
	s.mu.Lock()
	if s.healthy == v {
		s.mu.Unlock()
		return
	}
	s.healthy = v
	handlers := make([]func(bool), len(s.onState))
	copy(handlers, s.onState)
	s.mu.Unlock()

	if v {
		s.log.Info("push channel live")
	} else {
		s.log.Warn("push channel degraded; serving from local cache")
	}
	for _, fn := range handlers {
		fn(v)
	}
}
