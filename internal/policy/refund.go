// Package policy holds pure cancellation-refund decisions. The actual
// funds movement is the payment manager's job; a decision here only
// says how much of what was paid comes back.
package policy

import (
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/money"
)

// RefundDecision is the outcome of applying a cancellation policy.
type RefundDecision struct {
	Fraction float64 // 0..1 of the amount paid
	Amount   float64 // dollars to refund
}

// RefundPolicy maps a booking and the cancellation instant to a
// decision. Injectable per service; businesses set their own rules.
type RefundPolicy func(b domain.Booking, at time.Time) RefundDecision

// DefaultRefund refunds in full more than 24h before the slot, half
// within 24h, nothing once the slot has started.
func DefaultRefund(b domain.Booking, at time.Time) RefundDecision {
	paid := b.Payment.TotalPaid
	switch {
	case paid <= 0:
		return RefundDecision{}
	case !at.Before(b.Slot.Start):
		return RefundDecision{}
	case b.Slot.Start.Sub(at) >= 24*time.Hour:
		return RefundDecision{Fraction: 1, Amount: paid}
	default:
		return RefundDecision{Fraction: 0.5, Amount: money.RoundCents(paid / 2)}
	}
}
