// Package payments executes the pay transition and the fulfillment that
// follows it.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/fee"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/metrics"
	"github.com/CollabMarket/collab_engine/internal/app/services/requests"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// ErrPaymentFailed is returned when the payment unit of work could not be
// applied. No partial payment or transition is left behind.
var ErrPaymentFailed = errors.New("payment failed")

// Service processes payments and fulfillments for one actor session.
type Service struct {
	requests *requests.Service
	payments storage.PaymentStore
	posts    storage.PostStore
	gw       gateway.Gateway
	log      *logger.Logger
	nowFunc  func() time.Time
}

// New constructs a payment processor.
func New(reqs *requests.Service, payments storage.PaymentStore, posts storage.PostStore, gw gateway.Gateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{
		requests: reqs,
		payments: payments,
		posts:    posts,
		gw:       gw,
		log:      log,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// Pay charges the business for an approved request: it records the payment,
// advances the request to paid and leaves fulfillment to the runner. The
// whole unit either applies or fails with ErrPaymentFailed.
func (s *Service) Pay(ctx context.Context, actorID, requestID string) (payment.Payment, collab.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return payment.Payment{}, collab.Request{}, err
	}
	if req.BusinessID != actorID {
		return payment.Payment{}, req, requests.ErrUnauthorized
	}

	// Reapplied pay: hand back the existing payment, create nothing.
	if req.Status == collab.StatusPaid || req.Status == collab.StatusCompleted {
		existing, perr := s.payments.GetPaymentByRequest(ctx, requestID)
		if perr == nil {
			return existing, req, nil
		}
	}
	if req.Status != collab.StatusApproved {
		return payment.Payment{}, req, fmt.Errorf("%s -> %s: %w", req.Status, collab.StatusPaid, collab.ErrInvalidTransition)
	}

	platformFee, err := fee.Compute(req.Price)
	if err != nil {
		return payment.Payment{}, req, err
	}

	p := payment.Payment{
		ID:            uuid.NewString(),
		RequestID:     req.ID,
		Amount:        req.Price,
		PlatformFee:   platformFee,
		TotalAmount:   req.Price + platformFee,
		Status:        payment.StatusCompleted,
		PaymentDate:   s.nowFunc(),
		TransactionID: uuid.NewString(),
	}

	remote, err := s.gw.CreatePayment(ctx, p)
	if err != nil {
		metrics.RecordPayment(false)
		return payment.Payment{}, req, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	updated, err := s.requests.Transition(ctx, req.ID, collab.StatusPaid, func(r collab.Request) error {
		if r.BusinessID != actorID {
			return requests.ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		metrics.RecordPayment(false)
		return payment.Payment{}, req, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	stored, err := s.payments.CreatePayment(ctx, remote)
	if err != nil {
		metrics.RecordPayment(false)
		return payment.Payment{}, updated, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	metrics.RecordPayment(true)
	s.log.Infof("request %s paid, transaction %s", req.ID, stored.TransactionID)
	return stored, updated, nil
}

// Fulfill completes a paid request: it records the published content and
// advances the request to completed. Exactly one post ever exists per
// request; reapplying fulfill is a no-op returning the existing post.
func (s *Service) Fulfill(ctx context.Context, requestID string) (post.Post, collab.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return post.Post{}, collab.Request{}, err
	}

	if existing, perr := s.posts.GetPostByRequest(ctx, requestID); perr == nil {
		if req.Status != collab.StatusCompleted {
			req, err = s.requests.Transition(ctx, requestID, collab.StatusCompleted, nil)
			if err != nil {
				return existing, req, err
			}
		}
		return existing, req, nil
	}

	if req.Status != collab.StatusPaid {
		return post.Post{}, req, fmt.Errorf("%s -> %s: %w", req.Status, collab.StatusCompleted, collab.ErrInvalidTransition)
	}

	p := post.Post{
		ID:          uuid.NewString(),
		RequestID:   req.ID,
		Platform:    string(req.Platform),
		PostType:    string(req.ServiceType),
		Content:     req.Description,
		Status:      post.StatusPublished,
		PublishedAt: s.nowFunc(),
		Approved:    true,
	}

	remote, err := s.gw.CreatePost(ctx, p)
	if err != nil {
		return post.Post{}, req, fmt.Errorf("create post: %w", err)
	}

	stored, err := s.posts.CreatePost(ctx, remote)
	if err != nil {
		return post.Post{}, req, fmt.Errorf("store post: %w", err)
	}

	updated, err := s.requests.Transition(ctx, req.ID, collab.StatusCompleted, nil)
	if err != nil {
		return stored, req, err
	}

	s.log.Infof("request %s fulfilled, post %s", req.ID, stored.ID)
	return stored, updated, nil
}
