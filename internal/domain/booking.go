package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingNoShow     BookingStatus = "NO_SHOW"
)

// Terminal reports whether no further booking transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingNoShow
}

// ServiceSnapshot freezes the price and deposit terms of a Service at
// booking-creation time, protecting the customer from later changes.
type ServiceSnapshot struct {
	ServiceID uuid.UUID
	Name      string
	Price     float64
	Duration  time.Duration
	Deposit   DepositPolicy
	TakenAt   time.Time
}

// Booking is one reservation of one Service for one time slot. Bookings
// are never deleted; cancellation is a terminal status.
type Booking struct {
	ID            uuid.UUID
	BusinessID    uuid.UUID
	Customer      Customer
	Snapshot      ServiceSnapshot
	Slot          Interval
	Status        BookingStatus
	Payment       PaymentState
	HoldID        uuid.UUID
	HoldExpiresAt time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewBooking takes the service snapshot and returns a Pending booking.
// Placing the calendar hold is the caller's job.
func NewBooking(svc Service, slot Interval, customer Customer, now time.Time) Booking {
	status := PaymentPending
	if !svc.Deposit.Required() && svc.Price <= 0 {
		status = PaymentNotRequired
	}
	return Booking{
		ID:         uuid.New(),
		BusinessID: svc.BusinessID,
		Customer:   customer,
		Snapshot: ServiceSnapshot{
			ServiceID: svc.ID,
			Name:      svc.Name,
			Price:     svc.Price,
			Duration:  svc.Duration,
			Deposit:   svc.Deposit,
			TakenAt:   now,
		},
		Slot:      slot,
		Status:    BookingPending,
		Payment:   PaymentState{Status: status},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
