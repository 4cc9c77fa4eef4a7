package payment

import (
	"context"
	"sync"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// CaptureService is the external payment provider. Untrusted and
// asynchronous: success is never assumed without an explicit result.
type CaptureService interface {
	CreateIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (Intent, error)
	CaptureResult(ctx context.Context, intentID string) (CaptureResult, error)
	Refund(ctx context.Context, externalRef string, amount float64) (string, error)
}

type Intent struct {
	IntentID     string
	ClientSecret string
}

type CaptureOutcome string

const (
	CaptureSucceeded CaptureOutcome = "SUCCEEDED"
	CaptureCanceled  CaptureOutcome = "CANCELED"
	CaptureFailed    CaptureOutcome = "FAILED"
)

type CaptureResult struct {
	Outcome     CaptureOutcome
	ExternalRef string
	Reason      string
}

// RefRegistry deduplicates capture reference ids across requests.
// Register returns false when the ref was already seen.
type RefRegistry interface {
	Register(ctx context.Context, ref string) (bool, error)
}

// MemoryRefRegistry is the in-process registry used in tests and as a
// fallback when redis is not configured.
type MemoryRefRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryRefRegistry() *MemoryRefRegistry {
	return &MemoryRefRegistry{seen: make(map[string]struct{})}
}

func (m *MemoryRefRegistry) Register(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[ref]; ok {
		return false, nil
	}
	m.seen[ref] = struct{}{}
	return true, nil
}

// Manager drives captures through the external provider and applies
// the results to payment state.
type Manager struct {
	capture  CaptureService
	refs     RefRegistry
	logger   observability.Logger
	currency string
	timeout  time.Duration
}

func NewManager(capture CaptureService, refs RefRegistry, logger observability.Logger) *Manager {
	return &Manager{
		capture:  capture,
		refs:     refs,
		logger:   logger,
		currency: "USD",
		timeout:  30 * time.Second,
	}
}

// Collect charges one payable event for a booking: computes the due
// amount, runs the capture round trip, and applies the outcome. The
// returned transaction records the event either way. Resource locks
// must NOT be held across this call.
func (m *Manager) Collect(ctx context.Context, b *domain.Booking, t domain.PaymentType) (domain.PaymentTransaction, error) {
	amount, err := AmountDue(t, b.Snapshot, b.Payment)
	if err != nil {
		return domain.PaymentTransaction{}, err
	}
	txn := domain.PaymentTransaction{
		ID:        uuid.New(),
		BookingID: b.ID,
		Type:      t,
		Amount:    amount,
		Currency:  m.currency,
		CreatedAt: time.Now(),
	}

	result, err := m.roundTrip(ctx, amount, map[string]string{
		"booking_id":   b.ID.String(),
		"payment_type": string(t),
	})
	if err != nil {
		txn.Status = domain.PaymentFailed
		txn.Reason = err.Error()
		if ferr := Fail(&b.Payment); ferr != nil {
			return txn, ferr
		}
		return txn, errors.Mark(err, domain.ErrPaymentFailed)
	}

	return txn, m.settle(ctx, &b.Payment, &txn, t, amount, result)
}

// CollectOrder charges the full total of a cart checkout.
func (m *Manager) CollectOrder(ctx context.Context, o *domain.Order) (domain.PaymentTransaction, error) {
	if o.TotalAmount <= 0 {
		return domain.PaymentTransaction{}, domain.ErrInvalidAmount
	}
	txn := domain.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Type:      domain.PaymentTypeFull,
		Amount:    o.TotalAmount,
		Currency:  m.currency,
		CreatedAt: time.Now(),
	}

	result, err := m.roundTrip(ctx, o.TotalAmount, map[string]string{"order_id": o.ID.String()})
	if err != nil {
		txn.Status = domain.PaymentFailed
		txn.Reason = err.Error()
		return txn, errors.Mark(err, domain.ErrPaymentFailed)
	}

	txn.Status = domain.PaymentFullyPaid
	txn.ExternalRef = result.ExternalRef
	return txn, nil
}

// ApplyCapture settles a provider-confirmed capture against a booking,
// deduping by external reference id. Used by the callback path, where
// the provider may deliver the same confirmation more than once.
func (m *Manager) ApplyCapture(ctx context.Context, b *domain.Booking, t domain.PaymentType, amount float64, externalRef string) error {
	if b.Payment.Applied(externalRef) {
		m.logger.WithField("external_ref", externalRef).Info("duplicate capture ref, skipping")
		return nil
	}
	if err := Apply(&b.Payment, t, amount, externalRef); err != nil {
		return err
	}
	// The ref is claimed only once the funds are applied. A rejected
	// apply must leave the ref unclaimed, or a later legitimate
	// redelivery would be skipped.
	if _, err := m.refs.Register(ctx, externalRef); err != nil {
		m.logger.WithError(err).WithField("external_ref", externalRef).Warn("register capture ref")
	}
	return nil
}

// CollectRefund moves money back for a cancelled booking. A provider
// failure leaves the transaction Failed while the booking stays
// cancelled; the caller surfaces the mismatch.
func (m *Manager) CollectRefund(ctx context.Context, b *domain.Booking, amount float64) (domain.PaymentTransaction, error) {
	if amount <= 0 {
		return domain.PaymentTransaction{}, domain.ErrInvalidAmount
	}
	txn := domain.PaymentTransaction{
		ID:        uuid.New(),
		BookingID: b.ID,
		Type:      domain.PaymentTypeRefund,
		Amount:    amount,
		Currency:  m.currency,
		CreatedAt: time.Now(),
	}
	if len(b.Payment.AppliedRefs) == 0 {
		txn.Status = domain.PaymentFailed
		txn.Reason = "no capture to refund against"
		return txn, domain.ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ref, err := m.capture.Refund(ctx, b.Payment.AppliedRefs[0], amount)
	if err != nil {
		txn.Status = domain.PaymentFailed
		txn.Reason = err.Error()
		return txn, errors.Mark(err, domain.ErrPaymentFailed)
	}
	txn.ExternalRef = ref
	txn.Status = domain.PaymentRefunded
	if rerr := Refund(&b.Payment); rerr != nil {
		return txn, rerr
	}
	return txn, nil
}

func (m *Manager) roundTrip(ctx context.Context, amount float64, metadata map[string]string) (CaptureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	intent, err := m.capture.CreateIntent(ctx, amount, m.currency, metadata)
	if err != nil {
		return CaptureResult{}, errors.Wrap(err, "create intent")
	}
	result, err := m.capture.CaptureResult(ctx, intent.IntentID)
	if err != nil {
		return CaptureResult{}, errors.Wrap(err, "capture result")
	}
	if result.Outcome != CaptureSucceeded {
		return CaptureResult{}, errors.Newf("capture %s: %s", result.Outcome, result.Reason)
	}
	return result, nil
}

func (m *Manager) settle(ctx context.Context, state *domain.PaymentState, txn *domain.PaymentTransaction, t domain.PaymentType, amount float64, result CaptureResult) error {
	fresh, err := m.refs.Register(ctx, result.ExternalRef)
	if err != nil {
		return err
	}
	txn.ExternalRef = result.ExternalRef
	if !fresh || state.Applied(result.ExternalRef) {
		m.logger.WithField("external_ref", result.ExternalRef).Info("duplicate capture ref, skipping")
		txn.Status = state.Status
		return nil
	}
	if err := Apply(state, t, amount, result.ExternalRef); err != nil {
		return err
	}
	txn.Status = state.Status
	return nil
}
