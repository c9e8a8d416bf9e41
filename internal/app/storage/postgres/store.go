// Package postgres implements the storage interfaces backed by PostgreSQL,
// for server-side deployments where the engine outlives client sessions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
)

// Store implements the storage interfaces over a database handle.
type Store struct {
	db *sql.DB
}

var _ storage.RequestStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return err
}

// --- RequestStore -----------------------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, req collab.Request) (collab.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.Before(req.CreatedAt) {
		req.UpdatedAt = req.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_requests (id, business_id, influencer_id, service_type, platform, description, price, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.BusinessID, req.InfluencerID, req.ServiceType, req.Platform, req.Description, req.Price, req.Currency, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return collab.Request{}, err
	}
	return req, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req collab.Request) (collab.Request, error) {
	existing, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		return collab.Request{}, err
	}

	req.BusinessID = existing.BusinessID
	req.InfluencerID = existing.InfluencerID
	req.CreatedAt = existing.CreatedAt
	if req.UpdatedAt.Before(existing.UpdatedAt) {
		req.UpdatedAt = existing.UpdatedAt
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE collab_requests
		SET service_type = $2, platform = $3, description = $4, price = $5, currency = $6, status = $7, updated_at = $8
		WHERE id = $1
	`, req.ID, req.ServiceType, req.Platform, req.Description, req.Price, req.Currency, req.Status, req.UpdatedAt)
	if err != nil {
		return collab.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return collab.Request{}, fmt.Errorf("request %s: %w", req.ID, storage.ErrNotFound)
	}
	return req, nil
}

const requestColumns = `id, business_id, influencer_id, service_type, platform, description, price, currency, status, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (collab.Request, error) {
	var req collab.Request
	err := row.Scan(&req.ID, &req.BusinessID, &req.InfluencerID, &req.ServiceType, &req.Platform,
		&req.Description, &req.Price, &req.Currency, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func (s *Store) GetRequest(ctx context.Context, id string) (collab.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM collab_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		return collab.Request{}, notFound(err, "request", id)
	}
	return req, nil
}

func (s *Store) listRequests(ctx context.Context, query string, args ...any) ([]collab.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []collab.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (s *Store) ListRequests(ctx context.Context, actorID string, role collab.Role) ([]collab.Request, error) {
	column := "business_id"
	if role == collab.RoleInfluencer {
		column = "influencer_id"
	}
	if actorID == "" {
		return s.listRequests(ctx, `SELECT `+requestColumns+` FROM collab_requests ORDER BY created_at`)
	}
	return s.listRequests(ctx, `
		SELECT `+requestColumns+`
		FROM collab_requests
		WHERE `+column+` = $1
		ORDER BY created_at
	`, actorID)
}

func (s *Store) ListPaidRequests(ctx context.Context) ([]collab.Request, error) {
	return s.listRequests(ctx, `
		SELECT `+requestColumns+`
		FROM collab_requests
		WHERE status = $1
		ORDER BY updated_at
	`, collab.StatusPaid)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM collab_requests WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("request %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.RequestID == "" {
		return payment.Payment{}, errors.New("request_id required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_payments (id, request_id, amount, platform_fee, total_amount, status, payment_date, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.RequestID, p.Amount, p.PlatformFee, p.TotalAmount, p.Status, p.PaymentDate, p.TransactionID)
	if err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (s *Store) GetPaymentByRequest(ctx context.Context, requestID string) (payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, amount, platform_fee, total_amount, status, payment_date, transaction_id
		FROM collab_payments
		WHERE request_id = $1
	`, requestID)

	var p payment.Payment
	if err := row.Scan(&p.ID, &p.RequestID, &p.Amount, &p.PlatformFee, &p.TotalAmount, &p.Status, &p.PaymentDate, &p.TransactionID); err != nil {
		return payment.Payment{}, notFound(err, "payment for request", requestID)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context) ([]payment.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, amount, platform_fee, total_amount, status, payment_date, transaction_id
		FROM collab_payments
		ORDER BY payment_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payment.Payment
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(&p.ID, &p.RequestID, &p.Amount, &p.PlatformFee, &p.TotalAmount, &p.Status, &p.PaymentDate, &p.TransactionID); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- PostStore --------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	if p.RequestID == "" {
		return post.Post{}, errors.New("request_id required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_posts (id, request_id, platform, post_type, content, status, published_time, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.RequestID, p.Platform, p.PostType, p.Content, p.Status, p.PublishedAt, p.Approved)
	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

func (s *Store) GetPostByRequest(ctx context.Context, requestID string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, platform, post_type, content, status, published_time, is_approved
		FROM collab_posts
		WHERE request_id = $1
	`, requestID)

	var p post.Post
	if err := row.Scan(&p.ID, &p.RequestID, &p.Platform, &p.PostType, &p.Content, &p.Status, &p.PublishedAt, &p.Approved); err != nil {
		return post.Post{}, notFound(err, "post for request", requestID)
	}
	return p, nil
}

func (s *Store) ListPosts(ctx context.Context) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, platform, post_type, content, status, published_time, is_approved
		FROM collab_posts
		ORDER BY published_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []post.Post
	for rows.Next() {
		var p post.Post
		if err := rows.Scan(&p.ID, &p.RequestID, &p.Platform, &p.PostType, &p.Content, &p.Status, &p.PublishedAt, &p.Approved); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) CreatePostMetric(ctx context.Context, m post.Metric) (post.Metric, error) {
	if m.PostID == "" {
		return post.Metric{}, errors.New("post_id required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_post_metrics (id, post_id, reach, impressions)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.PostID, m.Reach, m.Impressions)
	if err != nil {
		return post.Metric{}, err
	}
	return m, nil
}

func (s *Store) ListPostMetrics(ctx context.Context, postID string) ([]post.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, reach, impressions
		FROM collab_post_metrics
		WHERE post_id = $1
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []post.Metric
	for rows.Next() {
		var m post.Metric
		if err := rows.Scan(&m.ID, &m.PostID, &m.Reach, &m.Impressions); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
