package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSubscriptionExists is returned by Subscribe when a subscription for the
// same topic is already active.
var ErrSubscriptionExists = errors.New("subscription already active")

// RealtimeClient handles Supabase Realtime subscriptions over the Phoenix
// websocket protocol.
type RealtimeClient struct {
	mu       sync.Mutex
	url      string
	conn     *websocket.Conn
	channels map[string]*Subscription
	onClose  func(error)
	done     chan struct{}
	ref      int
}

// ChangeEvent is one postgres change delivered on a subscription.
type ChangeEvent struct {
	Type   string // INSERT, UPDATE or DELETE
	Table  string
	Record json.RawMessage
	Old    json.RawMessage
}

// ChangeHandler receives change events.
type ChangeHandler func(event ChangeEvent)

// ChangesConfig scopes a postgres_changes subscription.
type ChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE or *
	Schema string
	Table  string
	Filter string // e.g. "business_id=eq.42"
}

// Subscription is one live channel on the realtime connection.
type Subscription struct {
	client  *RealtimeClient
	topic   string
	handler ChangeHandler
	joinRef string
}

type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
	JoinRef string          `json:"join_ref,omitempty"`
}

// NewRealtimeClient creates a realtime client for the given project URL.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := supabaseURL
	if len(wsURL) > 5 && wsURL[:5] == "https" {
		wsURL = "wss" + wsURL[5:]
	} else if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		channels: make(map[string]*Subscription),
	}
}

// OnClose registers a callback invoked when the connection drops. The error
// is nil on an orderly Close. Must be set before Connect.
func (r *RealtimeClient) OnClose(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = fn
}

// Connect establishes the websocket connection.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop(conn, r.done)
	go r.heartbeat(conn, r.done)

	return nil
}

// Close shuts the connection down and releases all subscriptions.
func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	close(r.done)
	r.channels = make(map[string]*Subscription)

	err := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.conn.Close()
	r.conn = nil
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

func (r *RealtimeClient) nextRefLocked() string {
	r.ref++
	return fmt.Sprintf("%d", r.ref)
}

// Subscribe opens a postgres_changes channel. One subscription per topic; a
// second Subscribe for the same scope returns an error so callers cannot
// leak duplicate listeners.
func (r *RealtimeClient) Subscribe(ctx context.Context, cfg ChangesConfig, handler ChangeHandler) (*Subscription, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil, fmt.Errorf("realtime client is not connected")
	}
	if _, exists := r.channels[topic]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionExists, topic)
	}

	ref := r.nextRefLocked()
	join := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{{
					"event":  cfg.Event,
					"schema": cfg.Schema,
					"table":  cfg.Table,
					"filter": cfg.Filter,
				}},
			},
		},
		"ref":      ref,
		"join_ref": ref,
	}
	if err := r.conn.WriteJSON(join); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	sub := &Subscription{
		client:  r,
		topic:   topic,
		handler: handler,
		joinRef: ref,
	}
	r.channels[topic] = sub
	return sub, nil
}

// Close leaves the channel and releases the subscription.
func (s *Subscription) Close() error {
	r := s.client
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[s.topic]; !exists {
		return nil
	}
	delete(r.channels, s.topic)

	if r.conn == nil {
		return nil
	}
	msg := map[string]any{
		"topic":    s.topic,
		"event":    "phx_leave",
		"payload":  map[string]any{},
		"ref":      r.nextRefLocked(),
		"join_ref": s.joinRef,
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			r.connectionLost(conn, err, done)
			return
		}

		var msg phoenixMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Event != "postgres_changes" {
			continue
		}

		var payload struct {
			Data struct {
				Type      string          `json:"type"`
				Table     string          `json:"table"`
				Record    json.RawMessage `json:"record"`
				OldRecord json.RawMessage `json:"old_record"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}

		r.mu.Lock()
		sub := r.channels[msg.Topic]
		r.mu.Unlock()
		if sub == nil {
			continue
		}

		sub.handler(ChangeEvent{
			Type:   payload.Data.Type,
			Table:  payload.Data.Table,
			Record: payload.Data.Record,
			Old:    payload.Data.OldRecord,
		})
	}
}

// connectionLost tears down state after a read error and notifies the owner
// so it can reconnect.
func (r *RealtimeClient) connectionLost(conn *websocket.Conn, err error, done chan struct{}) {
	r.mu.Lock()
	if r.conn != conn {
		// Already replaced or closed deliberately.
		r.mu.Unlock()
		return
	}
	select {
	case <-done:
		err = nil // orderly shutdown
	default:
		close(done)
	}
	r.conn.Close()
	r.conn = nil
	r.channels = make(map[string]*Subscription)
	onClose := r.onClose
	r.mu.Unlock()

	if onClose != nil && err != nil {
		onClose(err)
	}
}

func (r *RealtimeClient) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn == conn {
				msg := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     r.nextRefLocked(),
				}
				_ = conn.WriteJSON(msg)
			}
			r.mu.Unlock()
		}
	}
}
