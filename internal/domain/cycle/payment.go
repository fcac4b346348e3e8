package cycle

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the review state of a member's payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentRejected  PaymentStatus = "rejected"
)

// Counts reports whether a payment in this status reduces the amount owed.
// Pending payments count so members are not chased while their evidence is reviewed.
func (s PaymentStatus) Counts() bool {
	return s == PaymentPending || s == PaymentConfirmed
}

// Payment is a member's contribution towards a cycle.
// Corresponds to the 'payments' table.
type Payment struct {
	ID          int64
	CycleID     int64
	MemberID    int64
	Amount      decimal.Decimal
	Status      PaymentStatus
	EvidenceRef string // opaque to the lifecycle core
	CreatedAt   time.Time
}
