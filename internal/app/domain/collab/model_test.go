package collab

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusRejected},
		{StatusApproved, StatusPaid},
		{StatusPaid, StatusCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	statuses := []Status{StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusCompleted}
	isAllowed := func(from, to Status) bool {
		for _, tc := range allowed {
			if tc.from == from && tc.to == to {
				return true
			}
		}
		return false
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if isAllowed(from, to) {
				continue
			}
			if CanTransition(from, to) {
				t.Fatalf("unexpected edge %s -> %s", from, to)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(StatusRejected) {
		t.Fatal("rejected should be terminal")
	}
	if !Terminal(StatusCompleted) {
		t.Fatal("completed should be terminal")
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusPaid} {
		if Terminal(s) {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if ValidStatus("archived") {
		t.Fatal("archived is not a valid status")
	}
	if !ValidStatus(StatusPaid) {
		t.Fatal("paid is a valid status")
	}
}

func TestCounterpart(t *testing.T) {
	req := Request{BusinessID: "biz-1", InfluencerID: "inf-1"}
	if got := req.Counterpart(RoleBusiness); got != "inf-1" {
		t.Fatalf("business counterpart = %s, want inf-1", got)
	}
	if got := req.Counterpart(RoleInfluencer); got != "biz-1" {
		t.Fatalf("influencer counterpart = %s, want biz-1", got)
	}
}
