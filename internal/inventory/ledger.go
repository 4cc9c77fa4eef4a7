// Package inventory tracks committed vs. reserved quantity per SKU.
// reserved <= quantity holds across every mutation; available stock is
// quantity - reserved and can never go negative.
package inventory

import (
	"sync"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/google/uuid"
)

type StockStatus string

const (
	InStock    StockStatus = "IN_STOCK"
	LowStock   StockStatus = "LOW_STOCK"
	OutOfStock StockStatus = "OUT_OF_STOCK"
)

type record struct {
	mu        sync.Mutex
	quantity  int
	reserved  int
	threshold int
}

type reservation struct {
	sku       string
	qty       int
	expiresAt time.Time
}

// Ledger is the in-memory stock authority. Each SKU has its own lock;
// reservations are checkout-scoped and swept after their TTL.
type Ledger struct {
	mu           sync.RWMutex
	records      map[string]*record
	reservations map[uuid.UUID]reservation
}

func NewLedger() *Ledger {
	return &Ledger{
		records:      make(map[string]*record),
		reservations: make(map[uuid.UUID]reservation),
	}
}

// Define sets the on-hand quantity and low-stock threshold for a SKU.
// Used when loading catalog baselines and on restock.
func (l *Ledger) Define(sku string, quantity, threshold int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[sku]
	if !ok {
		l.records[sku] = &record{quantity: quantity, threshold: threshold}
		return
	}
	r.mu.Lock()
	r.quantity = quantity
	r.threshold = threshold
	r.mu.Unlock()
}

func (l *Ledger) recordFor(sku string) (*record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[sku]
	return r, ok
}

// Reserve claims qty units of a SKU for the duration of a checkout
// attempt. Fails with ErrInsufficientStock and leaves counters
// unchanged when availability is short.
func (l *Ledger) Reserve(sku string, qty int, ttl time.Duration) (uuid.UUID, error) {
	if qty <= 0 {
		return uuid.Nil, domain.ErrInvalidInput
	}
	r, ok := l.recordFor(sku)
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}

	r.mu.Lock()
	if qty > r.quantity-r.reserved {
		r.mu.Unlock()
		return uuid.Nil, domain.ErrInsufficientStock
	}
	r.reserved += qty
	r.mu.Unlock()

	// l.mu always comes before any record lock; holding r.mu here
	// would invert the order Define uses and can deadlock a restock.
	id := uuid.New()
	l.mu.Lock()
	l.reservations[id] = reservation{sku: sku, qty: qty, expiresAt: time.Now().Add(ttl)}
	l.mu.Unlock()
	return id, nil
}

// Commit turns a reservation into a sale: quantity drops, the
// reservation is cleared. Expired reservations fail with
// ErrReservationExpired and are released.
func (l *Ledger) Commit(id uuid.UUID) error {
	res, ok := l.takeReservation(id)
	if !ok {
		return domain.ErrReservationExpired
	}
	r, ok := l.recordFor(res.sku)
	if !ok {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserved -= res.qty
	if time.Now().After(res.expiresAt) {
		return domain.ErrReservationExpired
	}
	r.quantity -= res.qty
	return nil
}

// Release frees a reservation without selling. Unknown ids are a no-op,
// the sweep may have beaten us to it.
func (l *Ledger) Release(id uuid.UUID) {
	res, ok := l.takeReservation(id)
	if !ok {
		return
	}
	if r, ok := l.recordFor(res.sku); ok {
		r.mu.Lock()
		r.reserved -= res.qty
		r.mu.Unlock()
	}
}

// Available returns quantity minus reserved for a SKU.
func (l *Ledger) Available(sku string) (int, error) {
	r, ok := l.recordFor(sku)
	if !ok {
		return 0, domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quantity - r.reserved, nil
}

// Status derives the stock badge for a SKU.
func (l *Ledger) Status(sku string) (StockStatus, error) {
	r, ok := l.recordFor(sku)
	if !ok {
		return "", domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	available := r.quantity - r.reserved
	switch {
	case available == 0:
		return OutOfStock, nil
	case available <= r.threshold:
		return LowStock, nil
	default:
		return InStock, nil
	}
}

// ExpiredReservation identifies a reservation removed by a sweep.
type ExpiredReservation struct {
	ID  uuid.UUID
	SKU string
	Qty int
}

// SweepExpired releases every reservation past its TTL.
func (l *Ledger) SweepExpired(now time.Time) []ExpiredReservation {
	l.mu.Lock()
	var expired []ExpiredReservation
	for id, res := range l.reservations {
		if now.After(res.expiresAt) {
			expired = append(expired, ExpiredReservation{ID: id, SKU: res.sku, Qty: res.qty})
			delete(l.reservations, id)
		}
	}
	l.mu.Unlock()

	for _, e := range expired {
		if r, ok := l.recordFor(e.SKU); ok {
			r.mu.Lock()
			r.reserved -= e.Qty
			r.mu.Unlock()
		}
	}
	return expired
}

func (l *Ledger) takeReservation(id uuid.UUID) (reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if ok {
		delete(l.reservations, id)
	}
	return res, ok
}
