package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/gateway"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/internal/app/storage/memory"
	"github.com/CollabMarket/collab_engine/pkg/testutil"
)

func validRequest() collab.Request {
	return collab.Request{
		BusinessID:   "biz-1",
		InfluencerID: "inf-1",
		ServiceType:  collab.ServicePost,
		Platform:     collab.PlatformInstagram,
		Description:  "launch teaser",
		Price:        1000,
		Currency:     "USD",
	}
}

func newService(t *testing.T, gw gateway.Gateway, role collab.Role) *Service {
	t.Helper()
	actor := "biz-1"
	if role == collab.RoleInfluencer {
		actor = "inf-1"
	}
	return New(memory.New(), gw, actor, role, nil)
}

func TestCreate(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleBusiness)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Status != collab.StatusPending {
		t.Fatalf("new request status = %s, want pending", created.Status)
	}
	if _, ok := gw.Request(created.ID); !ok {
		t.Fatal("request not pushed to gateway")
	}
	local, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if local.Status != collab.StatusPending {
		t.Fatalf("local status = %s", local.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleBusiness)

	cases := []func(*collab.Request){
		func(r *collab.Request) { r.BusinessID = "" },
		func(r *collab.Request) { r.InfluencerID = "" },
		func(r *collab.Request) { r.Price = -1 },
		func(r *collab.Request) { r.ServiceType = "podcast" },
		func(r *collab.Request) { r.Platform = "myspace" },
	}
	for i, mutate := range cases {
		req := validRequest()
		mutate(&req)
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
	if gw.CreateRequestCalls != 0 {
		t.Fatalf("invalid requests reached the gateway: %d calls", gw.CreateRequestCalls)
	}
}

func TestCreateConfirmedRejection(t *testing.T) {
	gw := testutil.NewMockGateway()
	gw.FailCreateRequest = gateway.ErrConflict
	svc := newService(t, gw, collab.RoleBusiness)

	_, err := svc.Create(context.Background(), validRequest())
	if !errors.Is(err, gateway.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	reqs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatalf("rejected request should be discarded, found %d", len(reqs))
	}
}

func TestCreateTransientFailureKeepsLocal(t *testing.T) {
	gw := testutil.NewMockGateway()
	gw.FailCreateRequest = errors.New("connection reset")
	svc := newService(t, gw, collab.RoleBusiness)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID); err != nil {
		t.Fatalf("optimistic request lost: %v", err)
	}

	// A reload must not drop the unacknowledged entity even though the
	// server does not know it yet.
	gw.FailCreateRequest = nil
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID); err != nil {
		t.Fatalf("unacknowledged request dropped by reload: %v", err)
	}
}

func TestApproveGuard(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleInfluencer)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Approve(context.Background(), "someone-else", created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != collab.StatusPending {
		t.Fatalf("failed approve must not change state, got %s", got.Status)
	}

	approved, err := svc.Approve(context.Background(), "inf-1", created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != collab.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	remote, _ := gw.Request(created.ID)
	if remote.Status != collab.StatusApproved {
		t.Fatalf("gateway status = %s, want approved", remote.Status)
	}
}

func TestTransitionIllegalEdgeFailsClosed(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleInfluencer)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pushes := gw.UpdateStatusCalls

	if _, err := svc.Transition(context.Background(), created.ID, collab.StatusPaid, nil); !errors.Is(err, collab.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, _ := svc.Get(context.Background(), created.ID)
	if got.Status != collab.StatusPending {
		t.Fatalf("state changed on illegal edge: %s", got.Status)
	}
	if gw.UpdateStatusCalls != pushes {
		t.Fatal("illegal edge must not be pushed")
	}

	// Terminal states accept nothing.
	if _, err := svc.Reject(context.Background(), "inf-1", created.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.Transition(context.Background(), created.ID, collab.StatusApproved, nil); !errors.Is(err, collab.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition out of terminal state, got %v", err)
	}
}

func TestTransitionIdempotent(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleInfluencer)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(context.Background(), "inf-1", created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	pushes := gw.UpdateStatusCalls

	again, err := svc.Approve(context.Background(), "inf-1", created.ID)
	if err != nil {
		t.Fatalf("reapplied approve should succeed: %v", err)
	}
	if again.Status != collab.StatusApproved {
		t.Fatalf("status = %s", again.Status)
	}
	if gw.UpdateStatusCalls != pushes {
		t.Fatal("no-op transition must not be pushed")
	}
}

func TestTransitionConflictReconciles(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleInfluencer)

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The server already moved the request elsewhere.
	remote, _ := gw.Request(created.ID)
	remote.Status = collab.StatusRejected
	gw.Seed(remote)
	gw.FailUpdateStatus = gateway.ErrConflict

	if _, err := svc.Approve(context.Background(), "inf-1", created.ID); !errors.Is(err, gateway.ErrConflict) {
		t.Fatalf("expected conflict surfaced, got %v", err)
	}

	// The reconciling reload adopted the authoritative state.
	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != collab.StatusRejected {
		t.Fatalf("local status = %s, want server's rejected", got.Status)
	}
}

func TestApplyRemote(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleBusiness)

	unknown := validRequest()
	unknown.ID = "srv-1"
	unknown.Status = collab.StatusApproved
	unknown.CreatedAt = time.Now().UTC()
	unknown.UpdatedAt = unknown.CreatedAt

	prev, known, err := svc.ApplyRemote(context.Background(), unknown)
	if err != nil {
		t.Fatalf("apply unknown: %v", err)
	}
	if known {
		t.Fatal("entity should have been unknown")
	}
	if prev.ID != "" {
		t.Fatalf("unexpected previous version: %+v", prev)
	}

	update := unknown
	update.Status = collab.StatusPaid
	prev, known, err = svc.ApplyRemote(context.Background(), update)
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if !known {
		t.Fatal("entity should have been known")
	}
	if prev.Status != collab.StatusApproved {
		t.Fatalf("previous status = %s, want approved", prev.Status)
	}
	got, _ := svc.Get(context.Background(), "srv-1")
	if got.Status != collab.StatusPaid {
		t.Fatalf("local status = %s, want paid", got.Status)
	}
}

func TestReloadRemovesDeletedRows(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleBusiness)

	first, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	gw.Remove(second.ID)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if _, err := svc.Get(context.Background(), first.ID); err != nil {
		t.Fatalf("surviving row lost: %v", err)
	}
	if _, err := svc.Get(context.Background(), second.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted row should be gone, got %v", err)
	}
}

func TestListByStatus(t *testing.T) {
	gw := testutil.NewMockGateway()
	svc := newService(t, gw, collab.RoleInfluencer)

	a, _ := svc.Create(context.Background(), validRequest())
	if _, err := svc.Create(context.Background(), validRequest()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(context.Background(), "inf-1", a.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := svc.ListByStatus(context.Background(), collab.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}

	if _, err := svc.ListByStatus(context.Background(), "bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}
