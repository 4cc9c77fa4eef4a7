package calendar_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/calendar"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
)

func slot(startMin, endMin int) domain.Interval {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return domain.Interval{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestHold_OverlapConflicts(t *testing.T) {
	tests := []struct {
		name     string
		first    domain.Interval
		second   domain.Interval
		conflict bool
	}{
		{"identical", slot(0, 60), slot(0, 60), true},
		{"contained", slot(0, 60), slot(15, 45), true},
		{"overlap left", slot(30, 90), slot(0, 60), true},
		{"overlap right", slot(0, 60), slot(30, 90), true},
		{"adjacent after", slot(0, 60), slot(60, 120), false},
		{"adjacent before", slot(60, 120), slot(0, 60), false},
		{"disjoint", slot(0, 60), slot(120, 180), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := calendar.New()
			if _, err := cal.Hold("stylist-1", tt.first, time.Minute); err != nil {
				t.Fatalf("first hold: %v", err)
			}
			_, err := cal.Hold("stylist-1", tt.second, time.Minute)
			if tt.conflict && !errors.Is(err, domain.ErrSlotConflict) {
				t.Errorf("expected ErrSlotConflict, got %v", err)
			}
			if !tt.conflict && err != nil {
				t.Errorf("expected success, got %v", err)
			}
		})
	}
}

func TestHold_DistinctResourcesDoNotConflict(t *testing.T) {
	cal := calendar.New()
	if _, err := cal.Hold("stylist-1", slot(0, 60), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := cal.Hold("stylist-2", slot(0, 60), time.Minute); err != nil {
		t.Errorf("different resource should not conflict: %v", err)
	}
}

func TestCommitAndRelease(t *testing.T) {
	cal := calendar.New()
	id, err := cal.Hold("r", slot(0, 60), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := cal.Commit(id); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if cal.Free("r", slot(0, 60)) {
		t.Error("booked slot reported free")
	}
	cal.Release(id)
	if !cal.Free("r", slot(0, 60)) {
		t.Error("released slot reported busy")
	}
}

func TestCommit_AlreadyBookedFails(t *testing.T) {
	cal := calendar.New()
	id, err := cal.Hold("r", slot(0, 60), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := cal.Commit(id); err != nil {
		t.Fatal(err)
	}
	// A second commit must not look like a win.
	if err := cal.Commit(id); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if cal.Free("r", slot(0, 60)) {
		t.Error("booked slot reported free")
	}
}

func TestCommit_ExpiredHoldFails(t *testing.T) {
	cal := calendar.New()
	id, err := cal.Hold("r", slot(0, 60), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := cal.Commit(id); !errors.Is(err, domain.ErrHoldExpired) {
		t.Errorf("expected ErrHoldExpired, got %v", err)
	}
	// Slot must be bookable again after the failed commit.
	if _, err := cal.Hold("r", slot(0, 60), time.Minute); err != nil {
		t.Errorf("slot should be free after expiry: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	cal := calendar.New()
	expired, err := cal.Hold("r", slot(0, 60), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	committed, err := cal.Hold("r", slot(60, 120), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := cal.Commit(committed); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	swept := cal.SweepExpired(time.Now())
	if len(swept) != 1 || swept[0].HoldID != expired {
		t.Fatalf("expected exactly the expired hold swept, got %v", swept)
	}
	if cal.Free("r", slot(60, 120)) {
		t.Error("sweep must not touch booked slots")
	}
	if !cal.Free("r", slot(0, 60)) {
		t.Error("swept slot should be free")
	}
}

func TestHold_ConcurrentSameSlot(t *testing.T) {
	cal := calendar.New()
	const attempts = 32

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cal.Hold("r", slot(0, 60), time.Minute)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, domain.ErrSlotConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}
