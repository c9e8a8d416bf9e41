// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and backs client-style sessions
// as well as tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu                sync.RWMutex
	nextID            int64
	requests          map[string]collab.Request
	payments          map[string]payment.Payment
	paymentsByRequest map[string]string
	posts             map[string]post.Post
	postsByRequest    map[string]string
	metrics           map[string][]post.Metric
}

var _ storage.RequestStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:            1,
		requests:          make(map[string]collab.Request),
		payments:          make(map[string]payment.Payment),
		paymentsByRequest: make(map[string]string),
		posts:             make(map[string]post.Post),
		postsByRequest:    make(map[string]string),
		metrics:           make(map[string][]post.Metric),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// RequestStore implementation -------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req collab.Request) (collab.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.requests[req.ID]; exists {
		return collab.Request{}, fmt.Errorf("request %s already exists", req.ID)
	}

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.Before(req.CreatedAt) {
		req.UpdatedAt = req.CreatedAt
	}

	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) UpdateRequest(_ context.Context, req collab.Request) (collab.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.requests[req.ID]
	if !ok {
		return collab.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}

	req.CreatedAt = original.CreatedAt
	if req.UpdatedAt.Before(original.UpdatedAt) {
		req.UpdatedAt = original.UpdatedAt
	}

	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (collab.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return collab.Request{}, fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return req, nil
}

func (s *Store) ListRequests(_ context.Context, actorID string, role collab.Role) ([]collab.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]collab.Request, 0, len(s.requests))
	for _, req := range s.requests {
		if actorID != "" {
			if role == collab.RoleBusiness && req.BusinessID != actorID {
				continue
			}
			if role == collab.RoleInfluencer && req.InfluencerID != actorID {
				continue
			}
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *Store) ListPaidRequests(_ context.Context) ([]collab.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []collab.Request
	for _, req := range s.requests {
		if req.Status == collab.StatusPaid {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *Store) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	delete(s.requests, id)
	return nil
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.paymentsByRequest[p.RequestID]; exists {
		return payment.Payment{}, fmt.Errorf("payment for request %s already exists", p.RequestID)
	}
	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}

	s.payments[p.ID] = p
	s.paymentsByRequest[p.RequestID] = p.ID
	return p, nil
}

func (s *Store) GetPaymentByRequest(_ context.Context, requestID string) (payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentsByRequest[requestID]
	if !ok {
		return payment.Payment{}, fmt.Errorf("payment for request %s: %w", requestID, storage.ErrNotFound)
	}
	return s.payments[id], nil
}

func (s *Store) ListPayments(_ context.Context) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payment.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out, nil
}

// PostStore implementation ----------------------------------------------------

func (s *Store) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.postsByRequest[p.RequestID]; exists {
		return post.Post{}, fmt.Errorf("post for request %s already exists", p.RequestID)
	}
	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now().UTC()
	}

	s.posts[p.ID] = p
	s.postsByRequest[p.RequestID] = p.ID
	return p, nil
}

func (s *Store) GetPostByRequest(_ context.Context, requestID string) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.postsByRequest[requestID]
	if !ok {
		return post.Post{}, fmt.Errorf("post for request %s: %w", requestID, storage.ErrNotFound)
	}
	return s.posts[id], nil
}

func (s *Store) ListPosts(_ context.Context) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CreatePostMetric(_ context.Context, m post.Metric) (post.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[m.PostID]; !ok {
		return post.Metric{}, fmt.Errorf("post %s: %w", m.PostID, storage.ErrNotFound)
	}
	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	s.metrics[m.PostID] = append(s.metrics[m.PostID], m)
	return m, nil
}

func (s *Store) ListPostMetrics(_ context.Context, postID string) ([]post.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := s.metrics[postID]
	out := make([]post.Metric, len(metrics))
	copy(out, metrics)
	return out, nil
}
