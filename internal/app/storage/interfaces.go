package storage

import (
	"context"
	"errors"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
)

// ErrNotFound is returned when a referenced entity does not exist in the
// store.
var ErrNotFound = errors.New("not found")

// RequestStore persists the actor-scoped collaboration request collection.
type RequestStore interface {
	CreateRequest(ctx context.Context, req collab.Request) (collab.Request, error)
	UpdateRequest(ctx context.Context, req collab.Request) (collab.Request, error)
	GetRequest(ctx context.Context, id string) (collab.Request, error)
	ListRequests(ctx context.Context, actorID string, role collab.Role) ([]collab.Request, error)
	ListPaidRequests(ctx context.Context) ([]collab.Request, error)
	DeleteRequest(ctx context.Context, id string) error
}

// PaymentStore persists payment records. Payments are written once.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	GetPaymentByRequest(ctx context.Context, requestID string) (payment.Payment, error)
	ListPayments(ctx context.Context) ([]payment.Payment, error)
}

// PostStore persists fulfilled content and its metrics.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPostByRequest(ctx context.Context, requestID string) (post.Post, error)
	ListPosts(ctx context.Context) ([]post.Post, error)
	CreatePostMetric(ctx context.Context, m post.Metric) (post.Metric, error)
	ListPostMetrics(ctx context.Context, postID string) ([]post.Metric, error)
}
