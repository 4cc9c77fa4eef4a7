package cart_test

import (
	"errors"
	"testing"

	"github.com/campusmkt/campus-commerce-engine/internal/cart"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/inventory"
	"github.com/google/uuid"
)

func item(sku string, price float64, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: uuid.New(),
		SKU:       sku,
		SellerID:  uuid.New(),
		UnitPrice: price,
		Quantity:  qty,
	}
}

func TestTotals(t *testing.T) {
	c := &cart.Cart{
		CustomerID: uuid.New(),
		Items:      []domain.CartItem{item("a", 12.50, 2), item("b", 5.00, 1)},
		Shipping:   cart.ShippingStandard,
	}
	if got := c.Subtotal(); got != 30.00 {
		t.Errorf("Subtotal = %v, want 30.00", got)
	}
	if got := c.ShippingCost(); got != 5.99 {
		t.Errorf("ShippingCost = %v, want 5.99", got)
	}
	if got := c.Tax(); got != 2.40 {
		t.Errorf("Tax = %v, want 2.40", got)
	}
	if got := c.Total(); got != 38.39 {
		t.Errorf("Total = %v, want 38.39", got)
	}
}

func TestShippingWaiver(t *testing.T) {
	tests := []struct {
		name     string
		subtotal float64
		option   cart.ShippingOption
		want     float64
	}{
		{"standard under threshold", 49.99, cart.ShippingStandard, 5.99},
		{"standard at threshold", 50.00, cart.ShippingStandard, 0},
		{"expedited never waived", 200.00, cart.ShippingExpedited, 14.99},
		{"pickup always free", 10.00, cart.ShippingPickup, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cart.Cart{
				Items:    []domain.CartItem{item("x", tt.subtotal, 1)},
				Shipping: tt.option,
			}
			if got := c.ShippingCost(); got != tt.want {
				t.Errorf("ShippingCost = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscountAppliesToTotal(t *testing.T) {
	c := &cart.Cart{
		Items:    []domain.CartItem{item("x", 100, 1)},
		Shipping: cart.ShippingPickup,
		Discount: 10,
	}
	// 100 + 0 + 8 - 10
	if got := c.Total(); got != 98.00 {
		t.Errorf("Total = %v, want 98.00", got)
	}
}

func TestValidate(t *testing.T) {
	ledger := inventory.NewLedger()
	ledger.Define("in-stock", 10, 2)
	ledger.Define("short", 1, 0)
	ledger.Define("gone", 0, 0)

	c := &cart.Cart{
		Items: []domain.CartItem{
			item("in-stock", 5, 2),
			item("short", 5, 3),
			item("gone", 5, 1),
			item("unknown", 5, 1),
		},
	}
	failures := cart.Validate(c, ledger)
	if len(failures) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(failures))
	}
	for _, f := range failures {
		switch f.Item.SKU {
		case "short", "gone":
			if !errors.Is(f.Err, domain.ErrInsufficientStock) {
				t.Errorf("%s: expected ErrInsufficientStock, got %v", f.Item.SKU, f.Err)
			}
		case "unknown":
			if !errors.Is(f.Err, domain.ErrNotFound) {
				t.Errorf("unknown: expected ErrNotFound, got %v", f.Err)
			}
		default:
			t.Errorf("unexpected failure for %s", f.Item.SKU)
		}
	}
	// Validation must not touch stock.
	if avail, _ := ledger.Available("in-stock"); avail != 10 {
		t.Errorf("validate mutated stock: available = %d", avail)
	}
}

func TestSellerGroups(t *testing.T) {
	sellerA, sellerB := uuid.New(), uuid.New()
	c := &cart.Cart{Items: []domain.CartItem{
		{SKU: "a1", SellerID: sellerA, UnitPrice: 1, Quantity: 1},
		{SKU: "a2", SellerID: sellerA, UnitPrice: 1, Quantity: 1},
		{SKU: "b1", SellerID: sellerB, UnitPrice: 1, Quantity: 1},
	}}
	groups := c.SellerGroups()
	if len(groups) != 2 || len(groups[sellerA]) != 2 || len(groups[sellerB]) != 1 {
		t.Errorf("unexpected grouping: %v", groups)
	}
}

func TestToOrder(t *testing.T) {
	c := &cart.Cart{
		CustomerID: uuid.New(),
		Items:      []domain.CartItem{item("a", 20, 3)},
		Shipping:   cart.ShippingStandard,
	}
	o := c.ToOrder()
	if o.Status != domain.OrderPending {
		t.Errorf("status = %v, want PENDING", o.Status)
	}
	if o.Subtotal != 60.00 || o.Shipping != 0 || o.Tax != 4.80 {
		t.Errorf("unexpected amounts: %+v", o)
	}
	if len(o.Items) != 1 || o.Items[0].Quantity != 3 {
		t.Errorf("unexpected items: %+v", o.Items)
	}
}
