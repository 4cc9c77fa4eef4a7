// Package booking owns the booking state machine and the calendar
// choreography around it. One transition table; anything outside it is
// an ErrInvalidStateTransition, a defect rather than a user error.
package booking

import (
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/calendar"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/campusmkt/campus-commerce-engine/internal/payment"
)

var transitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingPending:    {domain.BookingConfirmed, domain.BookingCancelled},
	domain.BookingConfirmed:  {domain.BookingInProgress, domain.BookingCancelled, domain.BookingNoShow, domain.BookingCompleted},
	domain.BookingInProgress: {domain.BookingCompleted},
	domain.BookingCompleted:  {},
	domain.BookingCancelled:  {},
	domain.BookingNoShow:     {},
}

func CanTransition(from, to domain.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(b *domain.Booking, to domain.BookingStatus) error {
	if !CanTransition(b.Status, to) {
		return domain.ErrInvalidStateTransition
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return nil
}

// Manager sequences booking transitions with their calendar effects.
// The orchestrator owns locks and persistence around it.
type Manager struct {
	cal     *calendar.Calendar
	holdTTL time.Duration
	logger  observability.Logger
}

func NewManager(cal *calendar.Calendar, holdTTL time.Duration, logger observability.Logger) *Manager {
	return &Manager{cal: cal, holdTTL: holdTTL, logger: logger}
}

func (m *Manager) Calendar() *calendar.Calendar {
	return m.cal
}

// Create places a time-boxed hold on the slot and returns a Pending
// booking carrying the service snapshot. Fails with ErrSlotConflict if
// the slot overlaps an existing hold or booking for the business.
func (m *Manager) Create(svc domain.Service, slot domain.Interval, customer domain.Customer) (domain.Booking, error) {
	if !svc.Active {
		return domain.Booking{}, domain.ErrInvalidInput
	}
	holdID, err := m.cal.Hold(svc.BusinessID.String(), slot, m.holdTTL)
	if err != nil {
		return domain.Booking{}, err
	}
	b := domain.NewBooking(svc, slot, customer, time.Now())
	b.HoldID = holdID
	b.HoldExpiresAt = time.Now().Add(m.holdTTL)
	return b, nil
}

// Confirm converts the hold into a firm slot occupation once payment
// satisfies the deposit policy. An expired hold fails with
// ErrHoldExpired and the slot is already free for others.
func (m *Manager) Confirm(b *domain.Booking) error {
	if !CanTransition(b.Status, domain.BookingConfirmed) {
		return domain.ErrInvalidStateTransition
	}
	if !payment.Satisfies(b.Payment, b.Snapshot.Deposit) {
		return domain.ErrPaymentNotSatisfied
	}
	if err := m.cal.Commit(b.HoldID); err != nil {
		return err
	}
	return transition(b, domain.BookingConfirmed)
}

// Cancel releases the slot and moves the booking to its terminal
// Cancelled status. Allowed from Pending or Confirmed only. Refund
// decisions are the caller's, via the injected policy.
func (m *Manager) Cancel(b *domain.Booking, reason string) error {
	if err := transition(b, domain.BookingCancelled); err != nil {
		return err
	}
	m.cal.Release(b.HoldID)
	b.CancelReason = reason
	return nil
}

// Reschedule atomically moves the booking to a new slot. If the new
// slot conflicts the original is untouched: hold-new-then-release-old.
func (m *Manager) Reschedule(b *domain.Booking, newSlot domain.Interval) error {
	if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
		return domain.ErrInvalidStateTransition
	}
	newHold, err := m.cal.Hold(b.BusinessID.String(), newSlot, m.holdTTL)
	if err != nil {
		return err
	}
	if b.Status == domain.BookingConfirmed {
		if err := m.cal.Commit(newHold); err != nil {
			m.cal.Release(newHold)
			return err
		}
	}
	m.cal.Release(b.HoldID)
	b.HoldID = newHold
	b.Slot = newSlot
	if b.Status == domain.BookingPending {
		b.HoldExpiresAt = time.Now().Add(m.holdTTL)
	}
	b.UpdatedAt = time.Now()
	return nil
}

// Begin marks a confirmed booking as in progress.
func (m *Manager) Begin(b *domain.Booking) error {
	return transition(b, domain.BookingInProgress)
}

// Complete is terminal, allowed from Confirmed or InProgress.
func (m *Manager) Complete(b *domain.Booking) error {
	return transition(b, domain.BookingCompleted)
}

// MarkNoShow is terminal, allowed from Confirmed only. The slot stays
// occupied; the business lost the time either way.
func (m *Manager) MarkNoShow(b *domain.Booking) error {
	return transition(b, domain.BookingNoShow)
}
