// Package payment defines the payment record created when a business pays
// for an approved collaboration.
package payment

import "time"

// Status of a payment record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Payment references exactly one request. Created once, never mutated.
// Amounts are in minor currency units.
type Payment struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	Amount        int64     `json:"amount"`
	PlatformFee   int64     `json:"platform_fee"`
	TotalAmount   int64     `json:"total_amount"`
	Status        Status    `json:"status"`
	PaymentDate   time.Time `json:"payment_date"`
	TransactionID string    `json:"transaction_id"`
}
