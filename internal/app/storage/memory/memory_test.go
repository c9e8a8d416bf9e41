package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/domain/payment"
	"github.com/CollabMarket/collab_engine/internal/app/domain/post"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
)

func TestRequestLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateRequest(ctx, collab.Request{
		BusinessID:   "biz-1",
		InfluencerID: "inf-1",
		Status:       collab.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}

	created.Status = collab.StatusApproved
	updated, err := s.UpdateRequest(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != collab.StatusApproved {
		t.Fatalf("status = %s", updated.Status)
	}

	got, err := s.GetRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != collab.StatusApproved {
		t.Fatalf("get status = %s", got.Status)
	}

	if err := s.DeleteRequest(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRequest(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateRequestID(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateRequest(ctx, collab.Request{ID: "fixed"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateRequest(ctx, collab.Request{ID: "fixed"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestListRequestsScoping(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := []collab.Request{
		{ID: "a", BusinessID: "biz-1", InfluencerID: "inf-1"},
		{ID: "b", BusinessID: "biz-1", InfluencerID: "inf-2"},
		{ID: "c", BusinessID: "biz-2", InfluencerID: "inf-1"},
	}
	for _, r := range rows {
		if _, err := s.CreateRequest(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}

	asBusiness, err := s.ListRequests(ctx, "biz-1", collab.RoleBusiness)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(asBusiness) != 2 {
		t.Fatalf("business scope = %d rows, want 2", len(asBusiness))
	}

	asInfluencer, err := s.ListRequests(ctx, "inf-1", collab.RoleInfluencer)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(asInfluencer) != 2 {
		t.Fatalf("influencer scope = %d rows, want 2", len(asInfluencer))
	}
}

func TestListPaidRequests(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, r := range []collab.Request{
		{ID: "a", Status: collab.StatusPaid},
		{ID: "b", Status: collab.StatusApproved},
		{ID: "c", Status: collab.StatusPaid},
	} {
		if _, err := s.CreateRequest(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	paid, err := s.ListPaidRequests(ctx)
	if err != nil {
		t.Fatalf("list paid: %v", err)
	}
	if len(paid) != 2 {
		t.Fatalf("paid rows = %d, want 2", len(paid))
	}
}

func TestOnePaymentPerRequest(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreatePayment(ctx, payment.Payment{RequestID: "r1", Amount: 100}); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := s.CreatePayment(ctx, payment.Payment{RequestID: "r1", Amount: 200}); err == nil {
		t.Fatal("expected duplicate payment rejection")
	}

	got, err := s.GetPaymentByRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.Amount != 100 {
		t.Fatalf("amount = %d, want 100", got.Amount)
	}
	if _, err := s.GetPaymentByRequest(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnePostPerRequestAndMetrics(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreatePost(ctx, post.Post{RequestID: "r1", PostType: "reel"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := s.CreatePost(ctx, post.Post{RequestID: "r1"}); err == nil {
		t.Fatal("expected duplicate post rejection")
	}

	if _, err := s.CreatePostMetric(ctx, post.Metric{PostID: "missing", Reach: 10}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("metric for unknown post: %v", err)
	}
	for _, m := range []post.Metric{
		{PostID: created.ID, Reach: 100},
		{PostID: created.ID, Reach: 250},
	} {
		if _, err := s.CreatePostMetric(ctx, m); err != nil {
			t.Fatalf("create metric: %v", err)
		}
	}

	metrics, err := s.ListPostMetrics(ctx, created.ID)
	if err != nil {
		t.Fatalf("list metrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("metrics = %d, want 2", len(metrics))
	}
}
