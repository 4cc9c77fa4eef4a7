package booking_test

import (
	"errors"
	"testing"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/booking"
	"github.com/campusmkt/campus-commerce-engine/internal/calendar"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/google/uuid"
)

func testService(price float64, deposit domain.DepositPolicy) domain.Service {
	return domain.Service{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Name:       "Haircut",
		Price:      price,
		Duration:   time.Hour,
		Deposit:    deposit,
		Active:     true,
	}
}

func testSlot() domain.Interval {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return domain.Interval{Start: start, End: start.Add(time.Hour)}
}

func newManager(ttl time.Duration) *booking.Manager {
	return booking.NewManager(calendar.New(), ttl, observability.NewLogger())
}

func TestCreate_SnapshotProtectsPrice(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})

	b, err := m.Create(svc, testSlot(), domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingPending {
		t.Errorf("status = %s, want PENDING", b.Status)
	}
	if b.Snapshot.Price != 40 {
		t.Errorf("snapshot price = %v", b.Snapshot.Price)
	}

	// A later price change must not affect the booking.
	svc.Price = 60
	if b.Snapshot.Price != 40 {
		t.Errorf("snapshot tracked live service")
	}
}

func TestCreate_SlotConflict(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})
	slot := testSlot()

	if _, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()}); !errors.Is(err, domain.ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}
}

func TestConfirm_RequiresPayment(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(75, domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25})

	b, err := m.Create(svc, testSlot(), domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Confirm(&b); !errors.Is(err, domain.ErrPaymentNotSatisfied) {
		t.Fatalf("expected ErrPaymentNotSatisfied, got %v", err)
	}

	b.Payment.Status = domain.PaymentDepositPaid
	b.Payment.DepositPaid = 25
	if err := m.Confirm(&b); err != nil {
		t.Fatalf("confirm with deposit paid: %v", err)
	}
	if b.Status != domain.BookingConfirmed {
		t.Errorf("status = %s", b.Status)
	}
}

func TestConfirm_ExpiredHoldFreesSlot(t *testing.T) {
	m := newManager(time.Millisecond)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})
	slot := testSlot()

	b, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	b.Payment.Status = domain.PaymentFullyPaid
	time.Sleep(5 * time.Millisecond)

	if err := m.Confirm(&b); !errors.Is(err, domain.ErrHoldExpired) {
		t.Fatalf("expected ErrHoldExpired, got %v", err)
	}
	// The slot must be bookable by others now.
	if _, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()}); err != nil {
		t.Errorf("slot should be free after expiry: %v", err)
	}
}

func TestCancel_ReleasesSlot(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})
	slot := testSlot()

	b, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(&b, "change of plans"); err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingCancelled || b.CancelReason != "change of plans" {
		t.Errorf("unexpected booking: %+v", b)
	}
	if _, err := m.Create(svc, slot, domain.Customer{ID: uuid.New()}); err != nil {
		t.Errorf("slot should be free after cancel: %v", err)
	}
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})

	b, err := m.Create(svc, testSlot(), domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	b.Payment.Status = domain.PaymentFullyPaid
	if err := m.Confirm(&b); err != nil {
		t.Fatal(err)
	}
	if err := m.Complete(&b); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(&b, "too late"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestReschedule_AllOrNothing(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})
	slotA := testSlot()
	slotB := domain.Interval{Start: slotA.End, End: slotA.End.Add(time.Hour)}

	b, err := m.Create(svc, slotA, domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	// Another customer takes slot B.
	if _, err := m.Create(svc, slotB, domain.Customer{ID: uuid.New()}); err != nil {
		t.Fatal(err)
	}

	if err := m.Reschedule(&b, slotB); !errors.Is(err, domain.ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	// Original slot must still be held.
	if _, err := m.Create(svc, slotA, domain.Customer{ID: uuid.New()}); !errors.Is(err, domain.ErrSlotConflict) {
		t.Errorf("original slot was released on failed reschedule: %v", err)
	}

	slotC := domain.Interval{Start: slotB.End, End: slotB.End.Add(time.Hour)}
	if err := m.Reschedule(&b, slotC); err != nil {
		t.Fatal(err)
	}
	if b.Slot != slotC {
		t.Errorf("slot = %+v, want %+v", b.Slot, slotC)
	}
	// Old slot freed after a successful move.
	if _, err := m.Create(svc, slotA, domain.Customer{ID: uuid.New()}); err != nil {
		t.Errorf("old slot should be free: %v", err)
	}
}

func TestNoShow_OnlyFromConfirmed(t *testing.T) {
	m := newManager(time.Minute)
	svc := testService(40, domain.DepositPolicy{Kind: domain.DepositNone})

	b, err := m.Create(svc, testSlot(), domain.Customer{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.MarkNoShow(&b); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from PENDING, got %v", err)
	}

	b.Payment.Status = domain.PaymentFullyPaid
	if err := m.Confirm(&b); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkNoShow(&b); err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingNoShow {
		t.Errorf("status = %s", b.Status)
	}
}
