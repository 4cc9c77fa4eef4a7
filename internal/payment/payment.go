// Package payment owns the payment state machine for bookings and cart
// checkouts. Transitions not in the table are rejected; captures are
// deduped by external reference id so provider replays never
// double-apply funds.
package payment

import (
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/money"
)

// transitions is the closed table for the payment state machine.
// FAILED may move forward again because the caller re-invokes the same
// payment type after a failed capture; nothing retries automatically.
var transitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentPending:     {domain.PaymentDepositPaid, domain.PaymentFullyPaid, domain.PaymentFailed},
	domain.PaymentDepositPaid: {domain.PaymentFullyPaid, domain.PaymentFailed, domain.PaymentRefunded},
	domain.PaymentFullyPaid:   {domain.PaymentRefunded},
	domain.PaymentFailed:      {domain.PaymentDepositPaid, domain.PaymentFullyPaid},
	domain.PaymentRefunded:    {},
	domain.PaymentNotRequired: {},
}

func CanTransition(from, to domain.PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextPaymentType is the canonical "what does the customer owe next"
// answer. Total over every payment status and deterministic. A FAILED
// state after the deposit has settled owes the remaining balance, not
// a second deposit, so the settled funds decide alongside the status.
func NextPaymentType(state domain.PaymentState, policy domain.DepositPolicy) domain.PaymentType {
	switch state.Status {
	case domain.PaymentPending, domain.PaymentFailed:
		if state.DepositPaid > 0 {
			return domain.PaymentTypeRemaining
		}
		if policy.Required() {
			return domain.PaymentTypeDeposit
		}
		return domain.PaymentTypeFull
	case domain.PaymentDepositPaid:
		return domain.PaymentTypeRemaining
	default:
		// FULLY_PAID, REFUNDED, NOT_REQUIRED
		return domain.PaymentTypeNone
	}
}

// AmountDue computes the charge for a payment type from the service
// snapshot. Rejects with ErrInvalidAmount when a required payment
// computes to <= 0.
func AmountDue(t domain.PaymentType, snap domain.ServiceSnapshot, state domain.PaymentState) (float64, error) {
	var amount float64
	switch t {
	case domain.PaymentTypeDeposit:
		amount = money.DepositAmount(snap.Deposit, snap.Price)
	case domain.PaymentTypeFull:
		amount = money.RoundCents(snap.Price)
	case domain.PaymentTypeRemaining:
		amount = money.RemainingBalance(snap.Price, state.DepositPaid)
	case domain.PaymentTypeNone:
		return 0, nil
	default:
		return 0, domain.ErrInvalidInput
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return amount, nil
}

// Satisfies reports whether the payment state clears a booking for
// confirmation under the service's deposit policy.
func Satisfies(state domain.PaymentState, policy domain.DepositPolicy) bool {
	switch state.Status {
	case domain.PaymentNotRequired, domain.PaymentFullyPaid:
		return true
	case domain.PaymentDepositPaid:
		return policy.Required()
	default:
		return false
	}
}

// Apply settles a successful capture against the payment state.
// Idempotent per external reference id: a replayed ref returns nil
// without moving money a second time.
func Apply(state *domain.PaymentState, t domain.PaymentType, amount float64, externalRef string) error {
	if state.Applied(externalRef) {
		return nil
	}

	var to domain.PaymentStatus
	switch t {
	case domain.PaymentTypeDeposit:
		to = domain.PaymentDepositPaid
	case domain.PaymentTypeFull, domain.PaymentTypeRemaining:
		to = domain.PaymentFullyPaid
	default:
		return domain.ErrInvalidStateTransition
	}
	if !CanTransition(state.Status, to) {
		return domain.ErrInvalidStateTransition
	}

	if t == domain.PaymentTypeDeposit {
		state.DepositPaid = money.RoundCents(state.DepositPaid + amount)
	}
	state.TotalPaid = money.RoundCents(state.TotalPaid + amount)
	state.Status = to
	state.AppliedRefs = append(state.AppliedRefs, externalRef)
	return nil
}

// Fail records a failed capture. The state stays re-invokable.
func Fail(state *domain.PaymentState) error {
	if state.Status == domain.PaymentFailed {
		return nil
	}
	if !CanTransition(state.Status, domain.PaymentFailed) {
		return domain.ErrInvalidStateTransition
	}
	state.Status = domain.PaymentFailed
	return nil
}

// Refund moves a settled state to REFUNDED.
func Refund(state *domain.PaymentState) error {
	if !CanTransition(state.Status, domain.PaymentRefunded) {
		return domain.ErrInvalidStateTransition
	}
	state.Status = domain.PaymentRefunded
	return nil
}
