// Package insights derives the dashboard read models from the current
// request, payment and post collections. Aggregates are recomputed on
// demand from the local snapshot and never stored independently.
package insights

import (
	"context"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	"github.com/CollabMarket/collab_engine/internal/app/services/requests"
	"github.com/CollabMarket/collab_engine/internal/app/storage"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// Snapshot is the derived dashboard view for one actor.
type Snapshot struct {
	TotalSpent           int64     `json:"total_spent"`
	CompletedCampaigns   int       `json:"completed_campaigns"`
	ActiveRequests       int       `json:"active_requests"`
	PaidInFlight         int       `json:"paid_in_flight"`
	RejectedCount        int       `json:"rejected_count"`
	TotalOrders          int       `json:"total_orders"`
	ConnectedInfluencers int       `json:"connected_influencers"`
	ConnectedBusinesses  int       `json:"connected_businesses"`
	TotalReach           int64     `json:"total_reach"`
	Content              Breakdown `json:"content"`
}

// Breakdown groups published posts into named buckets.
type Breakdown struct {
	Total   int            `json:"total"`
	Buckets map[string]int `json:"buckets"`
}

// DefaultBucketMapping is the observed post-type grouping: poll and short
// share the polls bucket. Override via config if product decides otherwise.
func DefaultBucketMapping() map[string]string {
	return map[string]string{
		"post":  "posts",
		"story": "stories",
		"reel":  "reels",
		"video": "videos",
		"poll":  "polls",
		"short": "polls",
	}
}

// Service computes snapshots for the actor a request store is scoped to.
type Service struct {
	requests *requests.Service
	payments storage.PaymentStore
	posts    storage.PostStore
	mapping  map[string]string
	log      *logger.Logger
}

// New constructs an aggregator. A nil mapping uses the default grouping.
func New(reqs *requests.Service, payments storage.PaymentStore, posts storage.PostStore, mapping map[string]string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("insights")
	}
	if mapping == nil {
		mapping = DefaultBucketMapping()
	}
	return &Service{
		requests: reqs,
		payments: payments,
		posts:    posts,
		mapping:  mapping,
		log:      log,
	}
}

// Snapshot derives all aggregates in one pass over the current collections.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	reqs, err := s.requests.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	payments, err := s.payments.ListPayments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Content: Breakdown{Buckets: map[string]int{"reels": 0, "videos": 0, "polls": 0}},
	}

	statusByRequest := make(map[string]collab.Status, len(reqs))
	influencers := make(map[string]struct{})
	businesses := make(map[string]struct{})

	for _, req := range reqs {
		statusByRequest[req.ID] = req.Status
		influencers[req.InfluencerID] = struct{}{}
		businesses[req.BusinessID] = struct{}{}

		snap.TotalOrders++
		switch req.Status {
		case collab.StatusPending, collab.StatusApproved:
			snap.ActiveRequests++
		case collab.StatusPaid:
			snap.PaidInFlight++
		case collab.StatusRejected:
			snap.RejectedCount++
		case collab.StatusCompleted:
			snap.CompletedCampaigns++
		}
	}
	snap.ConnectedInfluencers = len(influencers)
	snap.ConnectedBusinesses = len(businesses)

	// Spend policy: payments count once their request is paid or completed.
	for _, p := range payments {
		switch statusByRequest[p.RequestID] {
		case collab.StatusPaid, collab.StatusCompleted:
			snap.TotalSpent += p.Amount
		}
	}

	for _, p := range posts {
		if _, owned := statusByRequest[p.RequestID]; !owned {
			continue
		}
		snap.Content.Total++
		if bucket, ok := s.mapping[p.PostType]; ok {
			snap.Content.Buckets[bucket]++
		}

		metrics, err := s.posts.ListPostMetrics(ctx, p.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, m := range metrics {
			snap.TotalReach += m.Reach
		}
	}

	return snap, nil
}
