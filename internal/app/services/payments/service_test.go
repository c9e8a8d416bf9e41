package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/services/requests"
	"github.com/CollabMarket/collab_engine/internal/app/storage/memory"
	"github.com/CollabMarket/collab_engine/pkg/testutil"
)

type fixture struct {
	gw       *testutil.MockGateway
	store    *memory.Store
	requests *requests.Service
	payments *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := testutil.NewMockGateway()
	store := memory.New()
	reqs := requests.New(store, gw, "biz-1", collab.RoleBusiness, nil)
	return &fixture{
		gw:       gw,
		store:    store,
		requests: reqs,
		payments: New(reqs, store, store, gw, nil),
	}
}

func (f *fixture) approvedRequest(t *testing.T, price int64) collab.Request {
	t.Helper()
	created, err := f.requests.Create(context.Background(), collab.Request{
		BusinessID:   "biz-1",
		InfluencerID: "inf-1",
		ServiceType:  collab.ServiceReel,
		Platform:     collab.PlatformInstagram,
		Description:  "spring drop",
		Price:        price,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	approved, err := f.requests.Transition(context.Background(), created.ID, collab.StatusApproved, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return approved
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)

	pay, updated, err := f.payments.Pay(context.Background(), "biz-1", req.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if pay.Amount != 1000 || pay.PlatformFee != 100 || pay.TotalAmount != 1100 {
		t.Fatalf("unexpected amounts: %+v", pay)
	}
	if pay.TransactionID == "" {
		t.Fatal("missing transaction id")
	}
	if updated.Status != collab.StatusPaid {
		t.Fatalf("request status = %s, want paid", updated.Status)
	}
	if got := f.gw.Payments(); len(got) != 1 {
		t.Fatalf("remote payments = %d, want 1", len(got))
	}
}

func TestPayUnauthorized(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)

	if _, _, err := f.payments.Pay(context.Background(), "inf-1", req.ID); !errors.Is(err, requests.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPayRequiresApproval(t *testing.T) {
	f := newFixture(t)
	created, err := f.requests.Create(context.Background(), collab.Request{
		BusinessID:   "biz-1",
		InfluencerID: "inf-1",
		ServiceType:  collab.ServicePost,
		Platform:     collab.PlatformTikTok,
		Price:        500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := f.payments.Pay(context.Background(), "biz-1", created.ID); !errors.Is(err, collab.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending request, got %v", err)
	}
	if len(f.gw.Payments()) != 0 {
		t.Fatal("no payment should exist")
	}
}

func TestPayIdempotent(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)

	first, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	second, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second pay created a new payment: %s != %s", second.ID, first.ID)
	}
	if len(f.gw.Payments()) != 1 {
		t.Fatalf("remote payments = %d, want 1", len(f.gw.Payments()))
	}
}

func TestPayRemoteFailureLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)
	f.gw.FailCreatePayment = errors.New("gateway timeout")

	_, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID)
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}

	got, err := f.requests.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != collab.StatusApproved {
		t.Fatalf("request must remain approved, got %s", got.Status)
	}
	if payments, _ := f.store.ListPayments(context.Background()); len(payments) != 0 {
		t.Fatalf("local payments = %d, want 0", len(payments))
	}
}

func TestFulfill(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)
	if _, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}

	pub, updated, err := f.payments.Fulfill(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if updated.Status != collab.StatusCompleted {
		t.Fatalf("request status = %s, want completed", updated.Status)
	}
	if pub.RequestID != req.ID {
		t.Fatalf("post bound to %s, want %s", pub.RequestID, req.ID)
	}
	if pub.Platform != string(req.Platform) || pub.PostType != string(req.ServiceType) {
		t.Fatalf("post does not mirror the request: %+v", pub)
	}

	// Reapplied fulfill returns the same post without creating another.
	again, _, err := f.payments.Fulfill(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("refulfill: %v", err)
	}
	if again.ID != pub.ID {
		t.Fatalf("second fulfill created a new post: %s != %s", again.ID, pub.ID)
	}
	if len(f.gw.Posts()) != 1 {
		t.Fatalf("remote posts = %d, want 1", len(f.gw.Posts()))
	}
}

func TestFulfillRequiresPaid(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)

	if _, _, err := f.payments.Fulfill(context.Background(), req.ID); !errors.Is(err, collab.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFulfillmentRunnerAutoCompletes(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)
	if _, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}

	runner := NewFulfillmentRunner(f.store, f.payments, RunnerConfig{
		Delay:       10 * time.Millisecond,
		Interval:    5 * time.Millisecond,
		AutoFulfill: true,
	}, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer runner.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.requests.Get(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == collab.StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("request never auto-completed")
}

func TestFulfillmentRunnerExplicitQueue(t *testing.T) {
	f := newFixture(t)
	req := f.approvedRequest(t, 1000)
	if _, _, err := f.payments.Pay(context.Background(), "biz-1", req.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}

	runner := NewFulfillmentRunner(f.store, f.payments, RunnerConfig{
		Delay:    time.Hour, // auto mode off; nothing is due on its own
		Interval: 5 * time.Millisecond,
	}, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer runner.Stop(context.Background())

	runner.Enqueue(req.ID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.requests.Get(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == collab.StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("queued request never completed")
}
