package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "PENDING"
	PaymentDepositPaid PaymentStatus = "DEPOSIT_PAID"
	PaymentFullyPaid   PaymentStatus = "FULLY_PAID"
	PaymentRefunded    PaymentStatus = "REFUNDED"
	PaymentFailed      PaymentStatus = "FAILED"
	PaymentNotRequired PaymentStatus = "NOT_REQUIRED"
)

// PaymentType names the payable event a capture settles.
type PaymentType string

const (
	PaymentTypeDeposit   PaymentType = "DEPOSIT"
	PaymentTypeFull      PaymentType = "FULL"
	PaymentTypeRemaining PaymentType = "REMAINING_BALANCE"
	PaymentTypeRefund    PaymentType = "REFUND"
	PaymentTypeNone      PaymentType = "NONE"
)

// PaymentState tracks what a booking's customer has paid so far.
// AppliedRefs holds the external reference ids of settled captures;
// replays with a seen ref must not double-apply funds.
type PaymentState struct {
	Status      PaymentStatus
	DepositPaid float64
	TotalPaid   float64
	AppliedRefs []string
}

func (s PaymentState) Applied(ref string) bool {
	for _, r := range s.AppliedRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// PaymentTransaction records one payable event. One transaction per
// event; never reused across events.
type PaymentTransaction struct {
	ID          uuid.UUID
	BookingID   uuid.UUID // uuid.Nil for cart checkouts
	OrderID     uuid.UUID // uuid.Nil for bookings
	Type        PaymentType
	Amount      float64
	Currency    string
	Status      PaymentStatus
	ExternalRef string
	Reason      string // provider failure reason, when Status is FAILED
	CreatedAt   time.Time
}
