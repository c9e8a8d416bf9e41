// Package requests owns the canonical collaboration request collection for
// the signed-in actor and every lifecycle transition on it. All mutation,
// whether a local command or a reconciled push event, flows through this
// service so a locally issued command can never race an incoming event.
package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/metrics"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// ErrValidation is returned for malformed request input.
var ErrValidation = errors.New("invalid request payload")

// ErrUnauthorized is returned when the acting party does not own the
// attempted transition.
var ErrUnauthorized = errors.New("actor is not a party to this request")

// ErrNotFound is returned when the request is unknown locally.
var ErrNotFound = storage.ErrNotFound

// Service is the request store for one actor session.
type Service struct {
	store   storage.RequestStore
	gw      gateway.Gateway
	actorID string
	role    collab.Role
	log     *logger.Logger

	mu      sync.Mutex
	unacked map[string]bool // created locally, not yet acknowledged remotely
	nowFunc func() time.Time
}

// New constructs a request store scoped to one actor.
func New(store storage.RequestStore, gw gateway.Gateway, actorID string, role collab.Role, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("requests")
	}
	return &Service{
		store:   store,
		gw:      gw,
		actorID: actorID,
		role:    role,
		log:     log,
		unacked: make(map[string]bool),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// ActorID returns the id of the actor this store is scoped to.
func (s *Service) ActorID() string { return s.actorID }

// Role returns the actor's side of the marketplace.
func (s *Service) Role() collab.Role { return s.role }

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, id string) (collab.Request, error) {
	return s.store.GetRequest(ctx, id)
}

// List returns every request the actor is a party to.
func (s *Service) List(ctx context.Context) ([]collab.Request, error) {
	return s.store.ListRequests(ctx, s.actorID, s.role)
}

// ListByStatus filters the actor's requests by lifecycle status.
func (s *Service) ListByStatus(ctx context.Context, status collab.Status) ([]collab.Request, error) {
	if !collab.ValidStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, ErrValidation)
	}
	all, err := s.store.ListRequests(ctx, s.actorID, s.role)
	if err != nil {
		return nil, err
	}
	out := make([]collab.Request, 0, len(all))
	for _, req := range all {
		if req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *Service) validate(req collab.Request) error {
	if req.BusinessID == "" || req.InfluencerID == "" {
		return fmt.Errorf("both parties are required: %w", ErrValidation)
	}
	if req.Price < 0 {
		return fmt.Errorf("price must be non-negative: %w", ErrValidation)
	}
	switch req.ServiceType {
	case collab.ServicePost, collab.ServiceStory, collab.ServiceReel, collab.ServiceVideo, collab.ServiceShort:
	default:
		return fmt.Errorf("service type %q: %w", req.ServiceType, ErrValidation)
	}
	switch req.Platform {
	case collab.PlatformInstagram, collab.PlatformFacebook, collab.PlatformTwitter, collab.PlatformYouTube, collab.PlatformTikTok:
	default:
		return fmt.Errorf("platform %q: %w", req.Platform, ErrValidation)
	}
	return nil
}

// Create registers a new pending request. The entity is applied locally at
// once and marked unacknowledged until the gateway confirms it; a confirmed
// rejection discards it, a transient failure keeps it for reconciliation.
func (s *Service) Create(ctx context.Context, req collab.Request) (collab.Request, error) {
	if err := s.validate(req); err != nil {
		return collab.Request{}, err
	}

	now := s.nowFunc()
	req.ID = uuid.NewString()
	req.Status = collab.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	s.mu.Lock()
	local, err := s.store.CreateRequest(ctx, req)
	if err != nil {
		s.mu.Unlock()
		return collab.Request{}, err
	}
	s.unacked[local.ID] = true
	s.mu.Unlock()

	remote, err := s.gw.CreateRequest(ctx, local)
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) || errors.Is(err, gateway.ErrNotFound) {
			// Confirmed failure: the remote store refused the row.
			s.discard(ctx, local.ID)
			return collab.Request{}, err
		}
		s.log.WithError(err).Warn("request created locally but not yet acknowledged")
		return local, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remote.ID != local.ID {
		_ = s.store.DeleteRequest(ctx, local.ID)
		remote, err = s.store.CreateRequest(ctx, remote)
		if err != nil {
			return collab.Request{}, err
		}
	} else {
		remote, err = s.store.UpdateRequest(ctx, remote)
		if err != nil {
			return collab.Request{}, err
		}
	}
	delete(s.unacked, local.ID)
	return remote, nil
}

// Approve moves a pending request to approved. Only the influencer on the
// request may approve it.
func (s *Service) Approve(ctx context.Context, actorID, id string) (collab.Request, error) {
	return s.Transition(ctx, id, collab.StatusApproved, func(req collab.Request) error {
		if req.InfluencerID != actorID {
			return ErrUnauthorized
		}
		return nil
	})
}

// Reject moves a pending request to rejected, a terminal state.
func (s *Service) Reject(ctx context.Context, actorID, id string) (collab.Request, error) {
	return s.Transition(ctx, id, collab.StatusRejected, func(req collab.Request) error {
		if req.InfluencerID != actorID {
			return ErrUnauthorized
		}
		return nil
	})
}

// Transition applies one lifecycle edge. Reapplying an already-applied
// transition is a successful no-op; an edge outside the state machine fails
// closed without touching state. The change is applied locally first and
// pushed to the gateway after; a Conflict or NotFound answer triggers a
// reconciling reload because the server owns the status.
func (s *Service) Transition(ctx context.Context, id string, to collab.Status, guard func(collab.Request) error) (collab.Request, error) {
	s.mu.Lock()
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return collab.Request{}, err
	}

	if req.Status == to {
		s.mu.Unlock()
		return req, nil
	}
	if !collab.CanTransition(req.Status, to) {
		s.mu.Unlock()
		return req, fmt.Errorf("%s -> %s: %w", req.Status, to, collab.ErrInvalidTransition)
	}
	if guard != nil {
		if err := guard(req); err != nil {
			s.mu.Unlock()
			return req, err
		}
	}

	from := req.Status
	req.Status = to
	req.UpdatedAt = s.nowFunc()
	updated, err := s.store.UpdateRequest(ctx, req)
	if err != nil {
		s.mu.Unlock()
		return collab.Request{}, err
	}
	s.mu.Unlock()

	metrics.RecordTransition(string(from), string(to))

	if err := s.gw.UpdateRequestStatus(ctx, id, to, updated.UpdatedAt); err != nil {
		if errors.Is(err, gateway.ErrConflict) || errors.Is(err, gateway.ErrNotFound) {
			s.log.WithError(err).Warnf("remote state diverged for request %s; reconciling", id)
			if rerr := s.Reload(ctx); rerr != nil {
				s.log.WithError(rerr).Warn("reconciling reload failed")
			}
			return updated, err
		}
		// Transient push failure. Local state stands; the authoritative
		// event stream corrects it if the server saw things differently.
		s.log.WithError(err).Warnf("status push for request %s not acknowledged", id)
	}
	return updated, nil
}

// ApplyRemote reconciles one authoritative entity pushed by the server. The
// incoming status always wins over local optimistic state. The previous
// local version is returned so callers can diff for notifications.
func (s *Service) ApplyRemote(ctx context.Context, req collab.Request) (prev collab.Request, known bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, gerr := s.store.GetRequest(ctx, req.ID)
	if gerr != nil {
		if !errors.Is(gerr, storage.ErrNotFound) {
			return collab.Request{}, false, gerr
		}
		if _, cerr := s.store.CreateRequest(ctx, req); cerr != nil {
			return collab.Request{}, false, cerr
		}
		return collab.Request{}, false, nil
	}

	if _, uerr := s.store.UpdateRequest(ctx, req); uerr != nil {
		return collab.Request{}, true, uerr
	}
	delete(s.unacked, req.ID)
	return prev, true, nil
}

// Reload refetches the actor's collection from the gateway and replaces
// local state. Entities created optimistically and not yet acknowledged are
// preserved until they are reconciled or explicitly discarded.
func (s *Service) Reload(ctx context.Context) error {
	remote, err := s.gw.ListRequests(ctx, s.actorID, s.role)
	if err != nil {
		return fmt.Errorf("reload requests: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.store.ListRequests(ctx, s.actorID, s.role)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(remote))
	for _, req := range remote {
		seen[req.ID] = true
		if _, err := s.store.GetRequest(ctx, req.ID); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if _, err := s.store.CreateRequest(ctx, req); err != nil {
				return err
			}
			continue
		}
		if _, err := s.store.UpdateRequest(ctx, req); err != nil {
			return err
		}
		delete(s.unacked, req.ID)
	}

	for _, req := range local {
		if seen[req.ID] || s.unacked[req.ID] {
			continue
		}
		if err := s.store.DeleteRequest(ctx, req.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Discard drops an unacknowledged optimistic entity after a confirmed
// remote failure.
func (s *Service) Discard(ctx context.Context, id string) {
	s.discard(ctx, id)
}

func (s *Service) discard(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unacked[id] {
		return
	}
	delete(s.unacked, id)
	if err := s.store.DeleteRequest(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.WithError(err).Warnf("discard optimistic request %s", id)
	}
}
