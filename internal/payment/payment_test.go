package payment_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/campusmkt/campus-commerce-engine/internal/payment"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

func snapshot(price float64, deposit domain.DepositPolicy) domain.ServiceSnapshot {
	return domain.ServiceSnapshot{
		ServiceID: uuid.New(),
		Price:     price,
		Duration:  time.Hour,
		Deposit:   deposit,
		TakenAt:   time.Now(),
	}
}

func TestNextPaymentType_Total(t *testing.T) {
	depositRequired := domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25}
	noDeposit := domain.DepositPolicy{Kind: domain.DepositNone}

	tests := []struct {
		state  domain.PaymentState
		policy domain.DepositPolicy
		want   domain.PaymentType
	}{
		{domain.PaymentState{Status: domain.PaymentPending}, depositRequired, domain.PaymentTypeDeposit},
		{domain.PaymentState{Status: domain.PaymentPending}, noDeposit, domain.PaymentTypeFull},
		{domain.PaymentState{Status: domain.PaymentFailed}, depositRequired, domain.PaymentTypeDeposit},
		{domain.PaymentState{Status: domain.PaymentFailed}, noDeposit, domain.PaymentTypeFull},
		// A failure after the deposit settled owes the balance, never a
		// second deposit.
		{domain.PaymentState{Status: domain.PaymentFailed, DepositPaid: 25}, depositRequired, domain.PaymentTypeRemaining},
		{domain.PaymentState{Status: domain.PaymentDepositPaid, DepositPaid: 25}, depositRequired, domain.PaymentTypeRemaining},
		{domain.PaymentState{Status: domain.PaymentFullyPaid}, depositRequired, domain.PaymentTypeNone},
		{domain.PaymentState{Status: domain.PaymentRefunded}, noDeposit, domain.PaymentTypeNone},
		{domain.PaymentState{Status: domain.PaymentNotRequired}, noDeposit, domain.PaymentTypeNone},
	}
	for _, tt := range tests {
		if got := payment.NextPaymentType(tt.state, tt.policy); got != tt.want {
			t.Errorf("NextPaymentType(%s, paid %.0f) = %s, want %s", tt.state.Status, tt.state.DepositPaid, got, tt.want)
		}
	}
}

func TestDepositScenario(t *testing.T) {
	// Service price $75, deposit fixed $25.
	snap := snapshot(75, domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25})
	state := domain.PaymentState{Status: domain.PaymentPending}

	amount, err := payment.AmountDue(domain.PaymentTypeDeposit, snap, state)
	if err != nil || amount != 25.00 {
		t.Fatalf("deposit due = %v (%v), want 25.00", amount, err)
	}
	if err := payment.Apply(&state, domain.PaymentTypeDeposit, amount, "ref-dep"); err != nil {
		t.Fatal(err)
	}
	if state.Status != domain.PaymentDepositPaid || state.DepositPaid != 25.00 {
		t.Fatalf("after deposit: %+v", state)
	}

	if got := payment.NextPaymentType(state, snap.Deposit); got != domain.PaymentTypeRemaining {
		t.Fatalf("next type = %s, want REMAINING_BALANCE", got)
	}
	amount, err = payment.AmountDue(domain.PaymentTypeRemaining, snap, state)
	if err != nil || amount != 50.00 {
		t.Fatalf("remaining due = %v (%v), want 50.00", amount, err)
	}
	if err := payment.Apply(&state, domain.PaymentTypeRemaining, amount, "ref-rem"); err != nil {
		t.Fatal(err)
	}
	if state.Status != domain.PaymentFullyPaid || state.TotalPaid != 75.00 {
		t.Fatalf("after remaining: %+v", state)
	}
}

func TestAmountDue_InvalidAmount(t *testing.T) {
	snap := snapshot(0, domain.DepositPolicy{Kind: domain.DepositNone})
	state := domain.PaymentState{Status: domain.PaymentPending}
	if _, err := payment.AmountDue(domain.PaymentTypeFull, snap, state); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	// Deposit already covers the price; remaining would be zero.
	snap = snapshot(25, domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25})
	state = domain.PaymentState{Status: domain.PaymentDepositPaid, DepositPaid: 25}
	if _, err := payment.AmountDue(domain.PaymentTypeRemaining, snap, state); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestApply_IdempotentPerRef(t *testing.T) {
	state := domain.PaymentState{Status: domain.PaymentPending}
	if err := payment.Apply(&state, domain.PaymentTypeDeposit, 25, "ref-1"); err != nil {
		t.Fatal(err)
	}
	if err := payment.Apply(&state, domain.PaymentTypeDeposit, 25, "ref-1"); err != nil {
		t.Fatal(err)
	}
	if state.DepositPaid != 25 || state.TotalPaid != 25 {
		t.Errorf("replay double-applied funds: %+v", state)
	}
}

func TestApply_RejectsBadTransition(t *testing.T) {
	state := domain.PaymentState{Status: domain.PaymentFullyPaid}
	err := payment.Apply(&state, domain.PaymentTypeDeposit, 25, "ref-x")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestSatisfies(t *testing.T) {
	deposit := domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25}
	none := domain.DepositPolicy{Kind: domain.DepositNone}

	tests := []struct {
		status domain.PaymentStatus
		policy domain.DepositPolicy
		want   bool
	}{
		{domain.PaymentDepositPaid, deposit, true},
		{domain.PaymentDepositPaid, none, false},
		{domain.PaymentFullyPaid, none, true},
		{domain.PaymentNotRequired, none, true},
		{domain.PaymentPending, deposit, false},
		{domain.PaymentFailed, none, false},
	}
	for _, tt := range tests {
		if got := payment.Satisfies(domain.PaymentState{Status: tt.status}, tt.policy); got != tt.want {
			t.Errorf("Satisfies(%s, %s) = %v, want %v", tt.status, tt.policy.Kind, got, tt.want)
		}
	}
}

type fakeCapture struct {
	fail    bool
	reason  string
	ref     string
	intents int
}

func (f *fakeCapture) CreateIntent(_ context.Context, amount float64, currency string, _ map[string]string) (payment.Intent, error) {
	f.intents++
	return payment.Intent{IntentID: fmt.Sprintf("pi_%d", f.intents), ClientSecret: "secret"}, nil
}

func (f *fakeCapture) CaptureResult(_ context.Context, intentID string) (payment.CaptureResult, error) {
	if f.fail {
		return payment.CaptureResult{Outcome: payment.CaptureFailed, Reason: f.reason}, nil
	}
	ref := f.ref
	if ref == "" {
		ref = "ch_" + intentID
	}
	return payment.CaptureResult{Outcome: payment.CaptureSucceeded, ExternalRef: ref}, nil
}

func (f *fakeCapture) Refund(_ context.Context, externalRef string, amount float64) (string, error) {
	if f.fail {
		return "", fmt.Errorf("refund rejected: %s", f.reason)
	}
	return "re_" + externalRef, nil
}

func TestManagerCollect_Success(t *testing.T) {
	svc := domain.Service{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Price:      75,
		Duration:   time.Hour,
		Deposit:    domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25},
	}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	m := payment.NewManager(&fakeCapture{}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	txn, err := m.Collect(context.Background(), &b, domain.PaymentTypeDeposit)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Amount != 25.00 || txn.Status != domain.PaymentDepositPaid {
		t.Errorf("unexpected transaction: %+v", txn)
	}
	if b.Payment.Status != domain.PaymentDepositPaid {
		t.Errorf("booking payment status = %s", b.Payment.Status)
	}
}

func TestManagerCollect_FailureStaysFailed(t *testing.T) {
	svc := domain.Service{
		ID:         uuid.New(),
		BusinessID: uuid.New(),
		Price:      75,
		Deposit:    domain.DepositPolicy{Kind: domain.DepositNone},
	}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	m := payment.NewManager(&fakeCapture{fail: true, reason: "card declined"}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	txn, err := m.Collect(context.Background(), &b, domain.PaymentTypeFull)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if txn.Status != domain.PaymentFailed {
		t.Errorf("transaction status = %s", txn.Status)
	}
	if b.Payment.Status != domain.PaymentFailed {
		t.Errorf("booking payment status = %s", b.Payment.Status)
	}

	// Caller re-invokes the same type after a failure; no auto-retry.
	m2 := payment.NewManager(&fakeCapture{}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	if _, err := m2.Collect(context.Background(), &b, domain.PaymentTypeFull); err != nil {
		t.Fatalf("re-invoke after failure: %v", err)
	}
	if b.Payment.Status != domain.PaymentFullyPaid {
		t.Errorf("booking payment status = %s", b.Payment.Status)
	}
}

func TestManagerCollect_ReplayedRefDoesNotDoubleApply(t *testing.T) {
	svc := domain.Service{
		ID:      uuid.New(),
		Price:   75,
		Deposit: domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25},
	}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	m := payment.NewManager(&fakeCapture{ref: "ch_same"}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	if _, err := m.Collect(context.Background(), &b, domain.PaymentTypeDeposit); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyCapture(context.Background(), &b, domain.PaymentTypeDeposit, 25, "ch_same"); err != nil {
		t.Fatal(err)
	}
	if b.Payment.DepositPaid != 25 || b.Payment.TotalPaid != 25 {
		t.Errorf("replay double-applied funds: %+v", b.Payment)
	}
}

func TestManagerApplyCapture_RejectedApplyLeavesRefUsable(t *testing.T) {
	svc := domain.Service{
		ID:      uuid.New(),
		Price:   75,
		Deposit: domain.DepositPolicy{Kind: domain.DepositFixed, Amount: 25},
	}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	// An out-of-order delivery hits a state that rejects the apply.
	m := payment.NewManager(&fakeCapture{}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	b.Payment.Status = domain.PaymentRefunded
	err := m.ApplyCapture(context.Background(), &b, domain.PaymentTypeDeposit, 25, "ch_redeliver")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if len(b.Payment.AppliedRefs) != 0 || b.Payment.DepositPaid != 0 {
		t.Fatalf("rejected apply mutated state: %+v", b.Payment)
	}

	// The same ref delivered again once the state allows it must apply;
	// the failed attempt may not have consumed it.
	b.Payment = domain.PaymentState{Status: domain.PaymentPending}
	if err := m.ApplyCapture(context.Background(), &b, domain.PaymentTypeDeposit, 25, "ch_redeliver"); err != nil {
		t.Fatal(err)
	}
	if b.Payment.Status != domain.PaymentDepositPaid || b.Payment.DepositPaid != 25 {
		t.Errorf("redelivery was not applied: %+v", b.Payment)
	}
}

func TestManagerCollectRefund(t *testing.T) {
	svc := domain.Service{
		ID:      uuid.New(),
		Price:   75,
		Deposit: domain.DepositPolicy{Kind: domain.DepositNone},
		Active:  true,
	}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	m := payment.NewManager(&fakeCapture{}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	if _, err := m.Collect(context.Background(), &b, domain.PaymentTypeFull); err != nil {
		t.Fatal(err)
	}

	txn, err := m.CollectRefund(context.Background(), &b, 75)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Status != domain.PaymentRefunded || txn.Amount != 75 {
		t.Errorf("unexpected refund transaction: %+v", txn)
	}
	if b.Payment.Status != domain.PaymentRefunded {
		t.Errorf("payment status = %s", b.Payment.Status)
	}
}

func TestManagerCollectRefund_FailureSurfaced(t *testing.T) {
	svc := domain.Service{ID: uuid.New(), Price: 75, Deposit: domain.DepositPolicy{Kind: domain.DepositNone}}
	b := domain.NewBooking(svc, domain.Interval{Start: time.Now(), End: time.Now().Add(time.Hour)}, domain.Customer{ID: uuid.New()}, time.Now())

	ok := payment.NewManager(&fakeCapture{}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	if _, err := ok.Collect(context.Background(), &b, domain.PaymentTypeFull); err != nil {
		t.Fatal(err)
	}

	failing := payment.NewManager(&fakeCapture{fail: true, reason: "provider outage"}, payment.NewMemoryRefRegistry(), observability.NewLogger())
	txn, err := failing.CollectRefund(context.Background(), &b, 75)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if txn.Status != domain.PaymentFailed {
		t.Errorf("transaction status = %s", txn.Status)
	}
	// The captured state is untouched; reconciliation is manual.
	if b.Payment.Status != domain.PaymentFullyPaid {
		t.Errorf("payment status = %s", b.Payment.Status)
	}
}
