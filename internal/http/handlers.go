package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusmkt/campus-commerce-engine/internal/adapters/crdb"
	"github.com/campusmkt/campus-commerce-engine/internal/adapters/mongo"
	"github.com/campusmkt/campus-commerce-engine/internal/cart"
	"github.com/campusmkt/campus-commerce-engine/internal/config"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/idempotency"
	"github.com/campusmkt/campus-commerce-engine/internal/money"
	"github.com/campusmkt/campus-commerce-engine/internal/orchestrator"
	"github.com/campusmkt/campus-commerce-engine/internal/payment"
)

type Handlers struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	repo    *crdb.Repository
	catalog *mongo.CatalogRepository
	audit   *mongo.AuditLogger
	idemp   *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, orch *orchestrator.Orchestrator, repo *crdb.Repository, catalog *mongo.CatalogRepository, audit *mongo.AuditLogger, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:     cfg,
		orch:    orch,
		repo:    repo,
		catalog: catalog,
		audit:   audit,
		idemp:   idemp,
	}
}

func writeError(w http.ResponseWriter, err error) {
	var checkout *orchestrator.CheckoutError
	if errors.As(err, &checkout) {
		failures := make([]map[string]interface{}, 0, len(checkout.Failures))
		for _, f := range checkout.Failures {
			failures = append(failures, map[string]interface{}{
				"sku":       f.Item.SKU,
				"available": f.Available,
				"error":     f.Err.Error(),
			})
		}
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "cart validation failed",
			"failures": failures,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSlotConflict),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrSerializationFailure):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrHoldExpired), errors.Is(err, domain.ErrReservationExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrPaymentFailed), errors.Is(err, domain.ErrPaymentNotSatisfied):
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func bookingResponse(b *domain.Booking) map[string]interface{} {
	resp := map[string]interface{}{
		"booking_id":     b.ID,
		"status":         b.Status,
		"payment_status": b.Payment.Status,
		"slot_start":     b.Slot.Start.Format(time.RFC3339),
		"slot_end":       b.Slot.End.Format(time.RFC3339),
		"price":          b.Snapshot.Price,
	}
	if b.Status == domain.BookingPending {
		resp["hold_expires_at"] = b.HoldExpiresAt.Format(time.RFC3339)
		due := payment.NextPaymentType(b.Payment, b.Snapshot.Deposit)
		if due != domain.PaymentTypeNone {
			if amount, err := payment.AmountDue(due, b.Snapshot, b.Payment); err == nil {
				resp["amount_due"] = amount
				resp["payment_type"] = due
			}
		}
	}
	return resp
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		ServiceID     uuid.UUID `json:"service_id"`
		SlotStart     time.Time `json:"slot_start"`
		SlotEnd       time.Time `json:"slot_end"`
		CustomerID    uuid.UUID `json:"customer_id"`
		CustomerEmail string    `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	svc, err := h.catalog.GetService(r.Context(), req.ServiceID)
	if err != nil {
		writeError(w, err)
		return
	}

	slot := domain.Interval{Start: req.SlotStart, End: req.SlotEnd}
	customer := domain.Customer{ID: req.CustomerID, Email: req.CustomerEmail}
	b, err := h.orch.CreateBooking(r.Context(), *svc, slot, customer)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.LogBooking(r.Context(), "booking.created", b)
	data := writeJSON(w, http.StatusCreated, bookingResponse(&b))
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	b, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(b))
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "booking.confirmed", func(id uuid.UUID) (*domain.Booking, error) {
		return h.orch.ConfirmBooking(r.Context(), id)
	})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	h.lifecycle(w, r, "booking.cancelled", func(id uuid.UUID) (*domain.Booking, error) {
		return h.orch.CancelBooking(r.Context(), id, req.Reason)
	})
}

func (h *Handlers) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotStart time.Time `json:"slot_start"`
		SlotEnd   time.Time `json:"slot_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.lifecycle(w, r, "booking.rescheduled", func(id uuid.UUID) (*domain.Booking, error) {
		return h.orch.RescheduleBooking(r.Context(), id, domain.Interval{Start: req.SlotStart, End: req.SlotEnd})
	})
}

func (h *Handlers) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "booking.completed", func(id uuid.UUID) (*domain.Booking, error) {
		return h.orch.CompleteBooking(r.Context(), id)
	})
}

func (h *Handlers) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "booking.no_show", func(id uuid.UUID) (*domain.Booking, error) {
		return h.orch.MarkNoShow(r.Context(), id)
	})
}

func (h *Handlers) lifecycle(w http.ResponseWriter, r *http.Request, action string, op func(uuid.UUID) (*domain.Booking, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	b, err := op(id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.audit.LogBooking(r.Context(), action, *b)
	writeJSON(w, http.StatusOK, bookingResponse(b))
}

func (h *Handlers) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		CustomerID uuid.UUID `json:"customer_id"`
		Shipping   string    `json:"shipping"`
		Discount   float64   `json:"discount"`
		Items      []struct {
			ProductID uuid.UUID `json:"product_id"`
			VariantID uuid.UUID `json:"variant_id"`
			Quantity  int       `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "empty cart", http.StatusBadRequest)
		return
	}

	c := &cart.Cart{
		CustomerID: req.CustomerID,
		Shipping:   cart.ShippingOption(req.Shipping),
		Discount:   req.Discount,
	}
	// Prices come from the catalog at checkout time, never from the
	// client payload.
	for _, item := range req.Items {
		p, err := h.catalog.GetProduct(r.Context(), item.ProductID)
		if err != nil {
			writeError(w, err)
			return
		}
		line := domain.CartItem{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			SKU:       p.SKU,
			UnitPrice: p.BasePrice,
			Quantity:  item.Quantity,
		}
		if item.VariantID != uuid.Nil {
			found := false
			for _, v := range p.Variants {
				if v.ID == item.VariantID {
					line.VariantID = v.ID
					line.SKU = v.SKU
					line.UnitPrice = v.Price
					found = true
					break
				}
			}
			if !found {
				writeError(w, domain.ErrNotFound)
				return
			}
		}
		c.Items = append(c.Items, line)
	}

	order, err := h.orch.CheckoutCart(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.LogOrder(r.Context(), "order.confirmed", order)
	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"subtotal": order.Subtotal,
		"shipping": order.Shipping,
		"tax":      order.Tax,
		"total":    order.TotalAmount,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"items":    order.Items,
		"total":    order.TotalAmount,
	})
}

// PaymentCallback settles an asynchronous provider confirmation.
// Deliveries are at-least-once; replays are deduped by external_ref.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID   uuid.UUID `json:"booking_id"`
		PaymentType string    `json:"payment_type"`
		Amount      float64   `json:"amount"`
		Status      string    `json:"status"`
		ExternalRef string    `json:"external_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Status != "SUCCEEDED" {
		w.WriteHeader(http.StatusOK)
		return
	}
	b, err := h.orch.ApplyCaptureResult(r.Context(), req.BookingID, domain.PaymentType(req.PaymentType), req.Amount, req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":     b.ID,
		"payment_status": b.Payment.Status,
	})
}

// FeeQuote shows a seller what a sale nets after platform and
// processor fees.
func (h *Handlers) FeeQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount < 0 {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	split := money.Split(amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":        amount,
		"platform_fee":  split.PlatformFee,
		"processor_fee": split.ProcessorFee,
		"payout":        split.Payout,
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
