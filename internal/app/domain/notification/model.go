// Package notification defines the transient notification emitted when a
// request is observed changing status. Notifications are consumed once by
// the UI layer and never persisted by the engine.
package notification

import (
	"fmt"
	"time"

	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
)

// Notification describes one observed status transition.
type Notification struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	RequestID  string        `json:"request_id"`
	FromStatus collab.Status `json:"from_status"`
	ToStatus   collab.Status `json:"to_status"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
}

// TransitionMessage renders the short human-readable text shown to users.
func TransitionMessage(from, to collab.Status) string {
	switch to {
	case collab.StatusApproved:
		return "Your collaboration request was approved"
	case collab.StatusRejected:
		return "Your collaboration request was declined"
	case collab.StatusPaid:
		return "Payment received for your collaboration"
	case collab.StatusCompleted:
		return "Your collaboration was completed"
	}
	return fmt.Sprintf("Request moved from %s to %s", from, to)
}
