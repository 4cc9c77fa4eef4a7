// Package orchestrator is the façade over the calendar, ledger,
// booking and payment managers. Every multi-component operation takes
// one logical lock per contended resource for the full check-then-act
// sequence. Slot and SKU locks are released while waiting on the
// external payment provider; the hold/reservation TTL covers that
// window and commit re-validates on re-acquire. The per-booking lock
// stays held for the whole lifecycle operation so a racing caller
// re-reads the booking only after the first one has settled it.
package orchestrator

import (
	"context"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/booking"
	"github.com/campusmkt/campus-commerce-engine/internal/cart"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/inventory"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/campusmkt/campus-commerce-engine/internal/payment"
	"github.com/campusmkt/campus-commerce-engine/internal/policy"
	"github.com/google/uuid"
)

// Store is the durable record of bookings, orders and payment
// transactions. Implemented by the crdb repository.
type Store interface {
	SaveBooking(ctx context.Context, b domain.Booking) error
	UpdateBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	SaveOrder(ctx context.Context, o domain.Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	SavePaymentTransaction(ctx context.Context, txn domain.PaymentTransaction) error
}

// Events receives lifecycle notifications. Fire-and-forget from the
// engine's point of view; delivery is the notification service's job.
type Events interface {
	Emit(ctx context.Context, eventType string, payload map[string]interface{})
}

type Orchestrator struct {
	bookings *booking.Manager
	payments *payment.Manager
	ledger   *inventory.Ledger
	store    Store
	events   Events
	refund   policy.RefundPolicy
	locks    *keyedMutex
	logger   observability.Logger

	reservationTTL time.Duration
}

func New(bookings *booking.Manager, payments *payment.Manager, ledger *inventory.Ledger, store Store, events Events, refund policy.RefundPolicy, reservationTTL time.Duration, logger observability.Logger) *Orchestrator {
	if refund == nil {
		refund = policy.DefaultRefund
	}
	return &Orchestrator{
		bookings:       bookings,
		payments:       payments,
		ledger:         ledger,
		store:          store,
		events:         events,
		refund:         refund,
		locks:          newKeyedMutex(),
		logger:         logger,
		reservationTTL: reservationTTL,
	}
}

func calendarKey(businessID uuid.UUID) string { return "cal:" + businessID.String() }
func skuKey(sku string) string                { return "sku:" + sku }
func bookingKey(id uuid.UUID) string          { return "booking:" + id.String() }

// CreateBooking places a hold and persists a Pending booking. The
// response carries what the customer owes next.
func (o *Orchestrator) CreateBooking(ctx context.Context, svc domain.Service, slot domain.Interval, customer domain.Customer) (domain.Booking, error) {
	unlock := o.locks.Lock(calendarKey(svc.BusinessID))
	defer unlock()

	b, err := o.bookings.Create(svc, slot, customer)
	if err != nil {
		observability.BookingsTotal.WithLabelValues("create", "conflict").Inc()
		return domain.Booking{}, err
	}
	if err := o.store.SaveBooking(ctx, b); err != nil {
		o.bookings.Calendar().Release(b.HoldID)
		return domain.Booking{}, err
	}
	observability.BookingsTotal.WithLabelValues("create", "ok").Inc()
	return b, nil
}

// ConfirmBooking collects the next due payment and converts the hold
// into a firm booking. The booking lock serializes racing confirms of
// the same booking for the whole decide-and-collect sequence, so only
// the first caller reaches the provider; it is held across the capture
// round trip, which is fine because it is not the slot lock. The slot
// lock itself is NOT held during capture; the hold TTL covers that
// window and Commit re-validates once it is re-acquired.
func (o *Orchestrator) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	unlockBooking := o.locks.Lock(bookingKey(bookingID))
	defer unlockBooking()

	b, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingPending {
		return b, domain.ErrInvalidStateTransition
	}

	if !payment.Satisfies(b.Payment, b.Snapshot.Deposit) {
		due := payment.NextPaymentType(b.Payment, b.Snapshot.Deposit)
		start := time.Now()
		txn, err := o.payments.Collect(ctx, b, due)
		observability.CaptureDuration.Observe(time.Since(start).Seconds())
		if txn.ID != uuid.Nil {
			if serr := o.store.SavePaymentTransaction(ctx, txn); serr != nil {
				o.logger.WithError(serr).Error("persist payment transaction")
			}
		}
		if err != nil {
			if uerr := o.store.UpdateBooking(ctx, *b); uerr != nil {
				o.logger.WithError(uerr).Error("persist failed payment state")
			}
			observability.BookingsTotal.WithLabelValues("confirm", "payment_failed").Inc()
			return b, err
		}
	}

	unlock := o.locks.Lock(calendarKey(b.BusinessID))
	defer unlock()

	if err := o.bookings.Confirm(b); err != nil {
		if uerr := o.store.UpdateBooking(ctx, *b); uerr != nil {
			o.logger.WithError(uerr).Error("persist booking after failed confirm")
		}
		observability.BookingsTotal.WithLabelValues("confirm", "rejected").Inc()
		return b, err
	}
	if err := o.store.UpdateBooking(ctx, *b); err != nil {
		return b, err
	}
	o.events.Emit(ctx, "booking.confirmed", map[string]interface{}{
		"booking_id":  b.ID,
		"business_id": b.BusinessID,
		"customer_id": b.Customer.ID,
		"slot_start":  b.Slot.Start,
	})
	observability.BookingsTotal.WithLabelValues("confirm", "ok").Inc()
	return b, nil
}

// CancelBooking releases the slot, records the reason, and settles the
// refund decision. A failed refund call leaves the booking Cancelled
// and the refund transaction Failed; that mismatch is surfaced for
// manual reconciliation, never hidden.
func (o *Orchestrator) CancelBooking(ctx context.Context, bookingID uuid.UUID, reason string) (*domain.Booking, error) {
	unlockBooking := o.locks.Lock(bookingKey(bookingID))
	defer unlockBooking()

	b, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(calendarKey(b.BusinessID))
	if err := o.bookings.Cancel(b, reason); err != nil {
		unlock()
		return b, err
	}
	unlock()

	if err := o.store.UpdateBooking(ctx, *b); err != nil {
		return b, err
	}

	decision := o.refund(*b, time.Now())
	if decision.Amount > 0 {
		txn, rerr := o.payments.CollectRefund(ctx, b, decision.Amount)
		if txn.ID != uuid.Nil {
			if serr := o.store.SavePaymentTransaction(ctx, txn); serr != nil {
				o.logger.WithError(serr).Error("persist refund transaction")
			}
		}
		if rerr != nil {
			o.logger.WithError(rerr).WithField("booking_id", b.ID).Error("refund failed, manual reconciliation required")
		} else if uerr := o.store.UpdateBooking(ctx, *b); uerr != nil {
			o.logger.WithError(uerr).Error("persist refunded payment state")
		}
	}

	o.events.Emit(ctx, "booking.cancelled", map[string]interface{}{
		"booking_id": b.ID,
		"reason":     reason,
		"refund":     decision.Amount,
	})
	observability.BookingsTotal.WithLabelValues("cancel", "ok").Inc()
	return b, nil
}

// RescheduleBooking is all-or-nothing: on conflict the original slot
// stays held.
func (o *Orchestrator) RescheduleBooking(ctx context.Context, bookingID uuid.UUID, newSlot domain.Interval) (*domain.Booking, error) {
	unlockBooking := o.locks.Lock(bookingKey(bookingID))
	defer unlockBooking()

	b, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(calendarKey(b.BusinessID))
	defer unlock()

	if err := o.bookings.Reschedule(b, newSlot); err != nil {
		observability.BookingsTotal.WithLabelValues("reschedule", "conflict").Inc()
		return b, err
	}
	if err := o.store.UpdateBooking(ctx, *b); err != nil {
		return b, err
	}
	observability.BookingsTotal.WithLabelValues("reschedule", "ok").Inc()
	return b, nil
}

// CompleteBooking marks a confirmed booking done.
func (o *Orchestrator) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return o.terminal(ctx, bookingID, o.bookings.Complete, "complete")
}

// MarkNoShow records that the customer never arrived.
func (o *Orchestrator) MarkNoShow(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return o.terminal(ctx, bookingID, o.bookings.MarkNoShow, "no_show")
}

func (o *Orchestrator) terminal(ctx context.Context, bookingID uuid.UUID, op func(*domain.Booking) error, name string) (*domain.Booking, error) {
	unlockBooking := o.locks.Lock(bookingKey(bookingID))
	defer unlockBooking()

	b, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := op(b); err != nil {
		observability.BookingsTotal.WithLabelValues(name, "rejected").Inc()
		return b, err
	}
	if err := o.store.UpdateBooking(ctx, *b); err != nil {
		return b, err
	}
	observability.BookingsTotal.WithLabelValues(name, "ok").Inc()
	return b, nil
}

// ApplyCaptureResult settles a provider callback against a booking,
// deduped by external reference id, and persists the new state.
func (o *Orchestrator) ApplyCaptureResult(ctx context.Context, bookingID uuid.UUID, t domain.PaymentType, amount float64, externalRef string) (*domain.Booking, error) {
	unlockBooking := o.locks.Lock(bookingKey(bookingID))
	defer unlockBooking()

	b, err := o.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := o.payments.ApplyCapture(ctx, b, t, amount, externalRef); err != nil {
		return b, err
	}
	if err := o.store.UpdateBooking(ctx, *b); err != nil {
		return b, err
	}
	return b, nil
}

// CheckoutError carries the per-item failures of a refused cart.
type CheckoutError struct {
	Failures []cart.ValidationFailure
}

func (e *CheckoutError) Error() string {
	return "cart validation failed"
}

func (e *CheckoutError) Unwrap() error {
	return domain.ErrInsufficientStock
}

// CheckoutCart validates and reserves the whole cart under the SKU
// locks, releases them for the capture round trip, then re-acquires
// and commits. No partial fulfillment: any validation failure refuses
// the entire cart.
func (o *Orchestrator) CheckoutCart(ctx context.Context, c *cart.Cart) (domain.Order, error) {
	keys := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		keys = append(keys, skuKey(item.SKU))
	}

	order := c.ToOrder()
	order.CreatedAt = time.Now()

	unlock := o.locks.LockAll(keys)
	if failures := cart.Validate(c, o.ledger); len(failures) > 0 {
		unlock()
		observability.CheckoutsTotal.WithLabelValues("validation_failed").Inc()
		return domain.Order{}, &CheckoutError{Failures: failures}
	}

	reservations := make([]uuid.UUID, 0, len(c.Items))
	rollback := func() {
		for _, id := range reservations {
			o.ledger.Release(id)
		}
	}
	for _, item := range c.Items {
		id, err := o.ledger.Reserve(item.SKU, item.Quantity, o.reservationTTL)
		if err != nil {
			rollback()
			unlock()
			observability.CheckoutsTotal.WithLabelValues("insufficient_stock").Inc()
			return domain.Order{}, err
		}
		reservations = append(reservations, id)
	}
	unlock()

	if err := o.store.SaveOrder(ctx, order); err != nil {
		rollback()
		return domain.Order{}, err
	}

	// Capture runs without any SKU lock held; the reservation TTL
	// covers the window.
	start := time.Now()
	txn, err := o.payments.CollectOrder(ctx, &order)
	observability.CaptureDuration.Observe(time.Since(start).Seconds())
	if txn.ID != uuid.Nil {
		if serr := o.store.SavePaymentTransaction(ctx, txn); serr != nil {
			o.logger.WithError(serr).Error("persist payment transaction")
		}
	}
	if err != nil {
		rollback()
		if uerr := o.store.UpdateOrderStatus(ctx, order.ID, domain.OrderFailed); uerr != nil {
			o.logger.WithError(uerr).Error("persist failed order")
		}
		order.Status = domain.OrderFailed
		observability.CheckoutsTotal.WithLabelValues("payment_failed").Inc()
		return order, err
	}

	unlock = o.locks.LockAll(keys)
	for i, id := range reservations {
		if cerr := o.ledger.Commit(id); cerr != nil {
			for _, rest := range reservations[i+1:] {
				o.ledger.Release(rest)
			}
			unlock()
			if uerr := o.store.UpdateOrderStatus(ctx, order.ID, domain.OrderFailed); uerr != nil {
				o.logger.WithError(uerr).Error("persist failed order")
			}
			order.Status = domain.OrderFailed
			o.logger.WithField("order_id", order.ID).Error("reservation lapsed after capture, manual reconciliation required")
			observability.CheckoutsTotal.WithLabelValues("reservation_expired").Inc()
			return order, cerr
		}
	}
	unlock()

	order.Status = domain.OrderConfirmed
	if err := o.store.UpdateOrderStatus(ctx, order.ID, domain.OrderConfirmed); err != nil {
		return order, err
	}
	o.events.Emit(ctx, "order.confirmed", map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.TotalAmount,
	})
	observability.CheckoutsTotal.WithLabelValues("ok").Inc()
	return order, nil
}
