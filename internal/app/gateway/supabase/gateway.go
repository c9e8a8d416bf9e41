// Package supabase implements the remote data gateway over Supabase
// PostgREST and Realtime.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/notification"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/pkg/logger"
	"github.com/CollabMarket/collab_engine/supabase/client"
)

const (
	tableRequests      = "service_requests"
	tablePayments      = "payments"
	tablePosts         = "posts"
	tableNotifications = "notifications"
)

// Gateway talks to Supabase.
type Gateway struct {
	rest     *client.Client
	realtime *client.RealtimeClient
	log      *logger.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// Config holds gateway configuration.
type Config struct {
	URL    string
	APIKey string
	// HTTPClient overrides the default resilient client, mainly for tests.
	HTTPClient *http.Client
}

// New builds a Supabase gateway with a retrying, circuit-broken HTTP client.
func New(cfg Config, log *logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.NewDefault("supabase-gateway")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: client.NewResilientTransport(nil, client.DefaultRetryConfig(), client.DefaultCircuitBreakerConfig()),
			Timeout:   30 * time.Second,
		}
	}

	rest, err := client.New(client.Config{
		URL:        cfg.URL,
		APIKey:     cfg.APIKey,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}

	return &Gateway{
		rest:     rest,
		realtime: client.NewRealtimeClient(cfg.URL, cfg.APIKey),
		log:      log,
	}, nil
}

func actorColumn(role collab.Role) string {
	if role == collab.RoleInfluencer {
		return "influencer_id"
	}
	return "business_id"
}

func mapStatusError(resp *client.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return gateway.ErrNotFound
	case http.StatusConflict:
		return gateway.ErrConflict
	}
	return resp.Error()
}

// ListRequests fetches every request the actor is a party to.
func (g *Gateway) ListRequests(ctx context.Context, actorID string, role collab.Role) ([]collab.Request, error) {
	resp, err := g.rest.From(tableRequests).
		Select("*").
		Eq(actorColumn(role), actorID).
		Order("created_at", false).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if err := mapStatusError(resp); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	var out []collab.Request
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return out, nil
}

// CreateRequest inserts a new request and returns the server representation.
func (g *Gateway) CreateRequest(ctx context.Context, req collab.Request) (collab.Request, error) {
	resp, err := g.rest.From(tableRequests).ExecuteInsert(ctx, req)
	if err != nil {
		return collab.Request{}, fmt.Errorf("create request: %w", err)
	}
	if err := mapStatusError(resp); err != nil {
		return collab.Request{}, fmt.Errorf("create request: %w", err)
	}

	var rows []collab.Request
	if err := resp.JSON(&rows); err != nil || len(rows) == 0 {
		return collab.Request{}, fmt.Errorf("decode created request: %w", err)
	}
	return rows[0], nil
}

// UpdateRequestStatus advances the remote row. A response naming no rows
// means the row is gone.
func (g *Gateway) UpdateRequestStatus(ctx context.Context, id string, status collab.Status, updatedAt time.Time) error {
	body := map[string]any{
		"status":     status,
		"updated_at": updatedAt.UTC().Format(time.RFC3339Nano),
	}
	resp, err := g.rest.From(tableRequests).Eq("id", id).ExecuteUpdate(ctx, body)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if err := mapStatusError(resp); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	var rows []json.RawMessage
	if err := resp.JSON(&rows); err == nil && len(rows) == 0 {
		return fmt.Errorf("update request status: %w", gateway.ErrNotFound)
	}
	return nil
}

// CreatePayment inserts a payment record.
func (g *Gateway) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	resp, err := g.rest.From(tablePayments).ExecuteInsert(ctx, p)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	if err := mapStatusError(resp); err != nil {
		return payment.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	var rows []payment.Payment
	if err := resp.JSON(&rows); err != nil || len(rows) == 0 {
		return payment.Payment{}, fmt.Errorf("decode created payment: %w", err)
	}
	return rows[0], nil
}

// CreatePost inserts a fulfilled content record.
func (g *Gateway) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	resp, err := g.rest.From(tablePosts).ExecuteInsert(ctx, p)
	if err != nil {
		return post.Post{}, fmt.Errorf("create post: %w", err)
	}
	if err := mapStatusError(resp); err != nil {
		return post.Post{}, fmt.Errorf("create post: %w", err)
	}

	var rows []post.Post
	if err := resp.JSON(&rows); err != nil || len(rows) == 0 {
		return post.Post{}, fmt.Errorf("decode created post: %w", err)
	}
	return rows[0], nil
}

// OnStreamClose registers a handler for dropped realtime connections so
// the synchronizer can resubscribe.
func (g *Gateway) OnStreamClose(fn func(error)) {
	g.realtime.OnClose(fn)
}

// Connect opens the realtime connection. Idempotent.
func (g *Gateway) Connect(ctx context.Context) error {
	return g.realtime.Connect(ctx)
}

// CloseRealtime shuts the realtime connection down.
func (g *Gateway) CloseRealtime() error {
	return g.realtime.Close()
}

// SubscribeRequests streams changes to requests the actor is a party to.
func (g *Gateway) SubscribeRequests(ctx context.Context, actorID string, role collab.Role, onEvent func(gateway.RequestEvent)) (gateway.Subscription, error) {
	if err := g.realtime.Connect(ctx); err != nil {
		return nil, err
	}
	return g.realtime.Subscribe(ctx, client.ChangesConfig{
		Table:  tableRequests,
		Filter: fmt.Sprintf("%s=eq.%s", actorColumn(role), actorID),
	}, func(ev client.ChangeEvent) {
		// Deletes carry the row in old_record only.
		raw := ev.Record
		if len(raw) == 0 {
			raw = ev.Old
		}
		var req collab.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			g.log.WithError(err).Warn("drop undecodable request event")
			return
		}
		onEvent(gateway.RequestEvent{Type: gateway.EventType(ev.Type), Request: req})
	})
}

// SubscribeNotifications streams notification inserts for the user.
func (g *Gateway) SubscribeNotifications(ctx context.Context, userID string, onInsert func(notification.Notification)) (gateway.Subscription, error) {
	if err := g.realtime.Connect(ctx); err != nil {
		return nil, err
	}
	return g.realtime.Subscribe(ctx, client.ChangesConfig{
		Event:  "INSERT",
		Table:  tableNotifications,
		Filter: fmt.Sprintf("user_id=eq.%s", userID),
	}, func(ev client.ChangeEvent) {
		var n notification.Notification
		if err := json.Unmarshal(ev.Record, &n); err != nil {
			g.log.WithError(err).Warn("drop undecodable notification event")
			return
		}
		onInsert(n)
	})
}
