// Package money holds the pure fee and deposit arithmetic. No state,
// no rounding surprises: payout is defined as the remainder so the
// three parts always sum back to the charged amount.
package money

import (
	"math"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
)

const (
	platformFeeRate  = 0.05
	processorFeeRate = 0.029
	processorFeeFlat = 0.30
)

// PlatformFee is the marketplace's cut of a charged amount.
func PlatformFee(amount float64) float64 {
	return RoundCents(amount * platformFeeRate)
}

// ProcessorFee is the card processor's cut of a charged amount.
func ProcessorFee(amount float64) float64 {
	return RoundCents(amount*processorFeeRate + processorFeeFlat)
}

// BusinessPayout is what the business receives after both fees.
// PlatformFee + ProcessorFee + BusinessPayout == amount by construction.
func BusinessPayout(amount float64) float64 {
	return RoundCents(amount - PlatformFee(amount) - ProcessorFee(amount))
}

// Breakdown is the full split of one charged amount.
type Breakdown struct {
	Amount       float64
	PlatformFee  float64
	ProcessorFee float64
	Payout       float64
}

func Split(amount float64) Breakdown {
	return Breakdown{
		Amount:       amount,
		PlatformFee:  PlatformFee(amount),
		ProcessorFee: ProcessorFee(amount),
		Payout:       BusinessPayout(amount),
	}
}

// DepositAmount computes the amount due up front under a deposit policy.
// Zero when no deposit is required.
func DepositAmount(policy domain.DepositPolicy, price float64) float64 {
	switch policy.Kind {
	case domain.DepositFixed:
		return RoundCents(policy.Amount)
	case domain.DepositPercent:
		return RoundCents(price * policy.Percent / 100)
	default:
		return 0
	}
}

// RemainingBalance is what is still owed after a deposit was captured.
func RemainingBalance(price, depositPaid float64) float64 {
	return RoundCents(price - depositPaid)
}

func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
