// Package cart computes checkout totals and validates line items
// against the inventory ledger. Validation never mutates stock; the
// orchestrator reserves only once the whole cart passes.
package cart

import (
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/money"
	"github.com/google/uuid"
)

type ShippingOption string

const (
	ShippingPickup    ShippingOption = "PICKUP"
	ShippingStandard  ShippingOption = "STANDARD"
	ShippingExpedited ShippingOption = "EXPEDITED"
)

const (
	taxRate               = 0.08
	standardShippingCost  = 5.99
	expeditedShippingCost = 14.99
	freeShippingThreshold = 50.0
)

// StockChecker is the read-only slice of the inventory ledger the cart
// needs. Satisfied by *inventory.Ledger.
type StockChecker interface {
	Available(sku string) (int, error)
}

type Cart struct {
	CustomerID uuid.UUID
	Items      []domain.CartItem
	Shipping   ShippingOption
	Discount   float64
}

// SellerGroups splits the cart by seller, one fulfillment per business.
func (c *Cart) SellerGroups() map[uuid.UUID][]domain.CartItem {
	groups := make(map[uuid.UUID][]domain.CartItem)
	for _, item := range c.Items {
		groups[item.SellerID] = append(groups[item.SellerID], item)
	}
	return groups
}

func (c *Cart) Subtotal() float64 {
	var sum float64
	for _, item := range c.Items {
		sum += item.UnitPrice * float64(item.Quantity)
	}
	return money.RoundCents(sum)
}

// ShippingCost applies the platform rule: subtotal >= $50 waives
// shipping unless the option is expedited.
func (c *Cart) ShippingCost() float64 {
	switch c.Shipping {
	case ShippingExpedited:
		return expeditedShippingCost
	case ShippingStandard:
		if c.Subtotal() >= freeShippingThreshold {
			return 0
		}
		return standardShippingCost
	default:
		return 0
	}
}

func (c *Cart) Tax() float64 {
	return money.RoundCents(c.Subtotal() * taxRate)
}

func (c *Cart) Total() float64 {
	return money.RoundCents(c.Subtotal() + c.ShippingCost() + c.Tax() - c.Discount)
}

// ValidationFailure names one item that cannot be fulfilled.
type ValidationFailure struct {
	Item      domain.CartItem
	Available int
	Err       error
}

// Validate walks every item against current availability. A non-empty
// result refuses the whole cart; there is no partial fulfillment.
func Validate(c *Cart, stock StockChecker) []ValidationFailure {
	var failures []ValidationFailure
	for _, item := range c.Items {
		available, err := stock.Available(item.SKU)
		if err != nil {
			failures = append(failures, ValidationFailure{Item: item, Err: err})
			continue
		}
		if available == 0 {
			failures = append(failures, ValidationFailure{Item: item, Available: 0, Err: domain.ErrInsufficientStock})
			continue
		}
		if item.Quantity > available {
			failures = append(failures, ValidationFailure{Item: item, Available: available, Err: domain.ErrInsufficientStock})
		}
	}
	return failures
}

// ToOrder freezes the cart into a durable pending order.
func (c *Cart) ToOrder() domain.Order {
	items := make([]domain.OrderItem, len(c.Items))
	for i, it := range c.Items {
		items[i] = domain.OrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			SKU:       it.SKU,
			SellerID:  it.SellerID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return domain.Order{
		ID:          uuid.New(),
		CustomerID:  c.CustomerID,
		Status:      domain.OrderPending,
		Subtotal:    c.Subtotal(),
		Shipping:    c.ShippingCost(),
		Tax:         c.Tax(),
		Discount:    c.Discount,
		TotalAmount: c.Total(),
		Items:       items,
	}
}
