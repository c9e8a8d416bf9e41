// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/notification"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
)

// MockGateway is an in-memory gateway.Gateway for tests. Errors can be
// injected per operation, and push events can be fed to subscribers.
type MockGateway struct {
	mu       sync.Mutex
	requests map[string]collab.Request
	payments []payment.Payment
	posts    []post.Post

	reqSubs  []func(gateway.RequestEvent)
	noteSubs []func(notification.Notification)
	onClose  func(error)

	// Error injection, checked before the operation applies.
	FailListRequests  error
	FailCreateRequest error
	FailUpdateStatus  error
	FailCreatePayment error
	FailCreatePost    error
	FailSubscribe     error

	// Counters for assertions.
	CreateRequestCalls int
	UpdateStatusCalls  int
	SubscribeCalls     int
}

// NewMockGateway returns an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{requests: make(map[string]collab.Request)}
}

// Seed installs a request directly into the remote state.
func (m *MockGateway) Seed(reqs ...collab.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reqs {
		m.requests[r.ID] = r
	}
}

// Remove deletes a request from the remote state.
func (m *MockGateway) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
}

// Request returns the remote copy of a request.
func (m *MockGateway) Request(id string) (collab.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	return r, ok
}

// Payments returns the recorded remote payments.
func (m *MockGateway) Payments() []payment.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]payment.Payment, len(m.payments))
	copy(out, m.payments)
	return out
}

// Posts returns the recorded remote posts.
func (m *MockGateway) Posts() []post.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]post.Post, len(m.posts))
	copy(out, m.posts)
	return out
}

func (m *MockGateway) ListRequests(ctx context.Context, actorID string, role collab.Role) ([]collab.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailListRequests != nil {
		return nil, m.FailListRequests
	}
	out := make([]collab.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockGateway) CreateRequest(ctx context.Context, req collab.Request) (collab.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateRequestCalls++
	if m.FailCreateRequest != nil {
		return collab.Request{}, m.FailCreateRequest
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *MockGateway) UpdateRequestStatus(ctx context.Context, id string, status collab.Status, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateStatusCalls++
	if m.FailUpdateStatus != nil {
		return m.FailUpdateStatus
	}
	req, ok := m.requests[id]
	if !ok {
		return gateway.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = updatedAt
	m.requests[id] = req
	return nil
}

func (m *MockGateway) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreatePayment != nil {
		return payment.Payment{}, m.FailCreatePayment
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *MockGateway) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreatePost != nil {
		return post.Post{}, m.FailCreatePost
	}
	m.posts = append(m.posts, p)
	return p, nil
}

func (m *MockGateway) SubscribeRequests(ctx context.Context, actorID string, role collab.Role, onEvent func(gateway.RequestEvent)) (gateway.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeCalls++
	if m.FailSubscribe != nil {
		return nil, m.FailSubscribe
	}
	m.reqSubs = append(m.reqSubs, onEvent)
	return &mockSubscription{}, nil
}

func (m *MockGateway) SubscribeNotifications(ctx context.Context, userID string, onInsert func(notification.Notification)) (gateway.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSubscribe != nil {
		return nil, m.FailSubscribe
	}
	m.noteSubs = append(m.noteSubs, onInsert)
	return &mockSubscription{}, nil
}

// SubscribeCount returns how many request subscriptions were opened. Safe
// to call while a reconnect loop runs.
func (m *MockGateway) SubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SubscribeCalls
}

// OnStreamClose implements gateway.StreamNotifier.
func (m *MockGateway) OnStreamClose(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// PushRequestEvent delivers a change event to every request subscriber.
func (m *MockGateway) PushRequestEvent(ev gateway.RequestEvent) {
	m.mu.Lock()
	subs := make([]func(gateway.RequestEvent), len(m.reqSubs))
	copy(subs, m.reqSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// PushNotification delivers a notification to every notification subscriber.
func (m *MockGateway) PushNotification(n notification.Notification) {
	m.mu.Lock()
	subs := make([]func(notification.Notification), len(m.noteSubs))
	copy(subs, m.noteSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

// DropConnection simulates a lost push channel, clearing subscribers and
// firing the close handler.
func (m *MockGateway) DropConnection(err error) {
	m.mu.Lock()
	m.reqSubs = nil
	m.noteSubs = nil
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

type mockSubscription struct{}

func (s *mockSubscription) Close() error { return nil }

var _ gateway.Gateway = (*MockGateway)(nil)
var _ gateway.StreamNotifier = (*MockGateway)(nil)
