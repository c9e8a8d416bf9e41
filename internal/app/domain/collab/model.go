// Package collab defines the service request domain: a single requested unit
// of promotional work between a business and an influencer.
package collab

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a request. The lifecycle only moves
// forward; see CanTransition for the edge set.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
)

// ErrInvalidTransition is returned when a transition is attempted from a
// state that does not permit it.
var ErrInvalidTransition = errors.New("invalid status transition")

// ServiceType enumerates the kinds of promotional content a request can ask
// for.
type ServiceType string

const (
	ServicePost  ServiceType = "post"
	ServiceStory ServiceType = "story"
	ServiceReel  ServiceType = "reel"
	ServiceVideo ServiceType = "video"
	ServiceShort ServiceType = "short"
)

// Platform enumerates supported social platforms.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// Request represents a requested unit of promotional work. Parties are
// immutable after creation; Price is in minor currency units.
type Request struct {
	ID           string      `json:"id"`
	BusinessID   string      `json:"business_id"`
	InfluencerID string      `json:"influencer_id"`
	ServiceType  ServiceType `json:"service_type"`
	Platform     Platform    `json:"platform"`
	Description  string      `json:"description"`
	Price        int64       `json:"price"`
	Currency     string      `json:"currency"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid},
	StatusPaid:     {StatusCompleted},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing edges.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusCompleted:
		return true
	}
	return false
}

// Role identifies which side of a collaboration an actor is on.
type Role string

const (
	RoleBusiness   Role = "business"
	RoleInfluencer Role = "influencer"
)

// Counterpart returns the id of the other party on the request for the given
// role.
func (r Request) Counterpart(role Role) string {
	if role == RoleBusiness {
		return r.InfluencerID
	}
	return r.BusinessID
}
