// Package gateway defines the boundary to the remote data store. The engine
// only sees these operations; the transport behind them is replaceable.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/notification"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
)

// ErrNotFound signals the remote row no longer exists.
var ErrNotFound = errors.New("gateway: not found")

// ErrConflict signals the remote state diverged from the expected
// precondition.
var ErrConflict = errors.New("gateway: conflict")

// EventType classifies pushed change events.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// RequestEvent is a pushed change to a collaboration request.
type RequestEvent struct {
	Type    EventType
	Request collab.Request
}

// Subscription is a live push channel. Close releases it.
type Subscription interface {
	Close() error
}

// StreamNotifier is implemented by gateways that can report a dropped push
// connection, letting the synchronizer resubscribe instead of going silent.
type StreamNotifier interface {
	OnStreamClose(fn func(error))
}

// Gateway is the remote data store the engine synchronizes against.
type Gateway interface {
	ListRequests(ctx context.Context, actorID string, role collab.Role) ([]collab.Request, error)
	CreateRequest(ctx context.Context, req collab.Request) (collab.Request, error)
	UpdateRequestStatus(ctx context.Context, id string, status collab.Status, updatedAt time.Time) error
	CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)

	SubscribeRequests(ctx context.Context, actorID string, role collab.Role, onEvent func(RequestEvent)) (Subscription, error)
	SubscribeNotifications(ctx context.Context, userID string, onInsert func(notification.Notification)) (Subscription, error)
}
