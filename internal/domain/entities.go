package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositKind selects how a Service computes the amount due before a
// booking can be confirmed.
type DepositKind string

const (
	DepositNone    DepositKind = "NONE"
	DepositFixed   DepositKind = "FIXED"
	DepositPercent DepositKind = "PERCENT"
)

type DepositPolicy struct {
	Kind    DepositKind
	Amount  float64 // dollars, DepositFixed only
	Percent float64 // 0-100, DepositPercent only
}

func (p DepositPolicy) Required() bool {
	return p.Kind != DepositNone
}

// Service is a time-based offering owned by one business. Confirmed
// bookings reference a snapshot, never the live record.
type Service struct {
	ID                 uuid.UUID
	BusinessID         uuid.UUID
	Name               string
	Price              float64
	Duration           time.Duration
	Deposit            DepositPolicy
	CancellationPolicy string
	Active             bool
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Product is a sellable unit. Variant-less products carry a single SKU;
// otherwise each variant has its own.
type Product struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	Name      string
	BasePrice float64
	SKU       string
	Variants  []ProductVariant
}

type ProductVariant struct {
	ID         uuid.UUID
	Name       string
	Price      float64
	SKU        string
	Attributes map[string]string
}

// CartItem is an ephemeral, customer-scoped line. Quantity is bounded by
// available inventory at checkout validation time, not at add time.
type CartItem struct {
	ProductID uuid.UUID
	VariantID uuid.UUID // uuid.Nil when the base product is bought
	SKU       string
	SellerID  uuid.UUID
	UnitPrice float64
	Quantity  int
}

// Order is the durable result of a cart checkout.
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	Status      OrderStatus
	Subtotal    float64
	Shipping    float64
	Tax         float64
	Discount    float64
	TotalAmount float64
	Items       []OrderItem
	CreatedAt   time.Time
}

type OrderItem struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	SKU       string
	SellerID  uuid.UUID
	UnitPrice float64
	Quantity  int
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderFailed    OrderStatus = "FAILED"
)

// Customer is the stable identity stamped onto bookings and payment
// transactions. Supplied by the identity provider, opaque to the engine.
type Customer struct {
	ID    uuid.UUID
	Email string
}
