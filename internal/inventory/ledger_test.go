package inventory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/inventory"
)

func TestReserveCommit(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("hoodie-m", 10, 2)

	id, err := l.Reserve("hoodie-m", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if avail, _ := l.Available("hoodie-m"); avail != 7 {
		t.Errorf("available = %d, want 7", avail)
	}
	if err := l.Commit(id); err != nil {
		t.Fatal(err)
	}
	if avail, _ := l.Available("hoodie-m"); avail != 7 {
		t.Errorf("available after commit = %d, want 7", avail)
	}
}

func TestReserve_InsufficientStockLeavesCountersUnchanged(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("sticker", 2, 1)

	if _, err := l.Reserve("sticker", 3, time.Minute); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if avail, _ := l.Available("sticker"); avail != 2 {
		t.Errorf("available = %d, want 2", avail)
	}
}

func TestRelease(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("mug", 5, 1)

	id, err := l.Reserve("mug", 5, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Reserve("mug", 1, time.Minute); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	l.Release(id)
	if avail, _ := l.Available("mug"); avail != 5 {
		t.Errorf("available after release = %d, want 5", avail)
	}
}

func TestCommit_ExpiredReservation(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("tote", 4, 1)

	id, err := l.Reserve("tote", 2, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := l.Commit(id); !errors.Is(err, domain.ErrReservationExpired) {
		t.Errorf("expected ErrReservationExpired, got %v", err)
	}
	if avail, _ := l.Available("tote"); avail != 4 {
		t.Errorf("available = %d, want 4", avail)
	}
}

func TestSweepExpired(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("pin", 3, 1)

	if _, err := l.Reserve("pin", 2, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	keep, err := l.Reserve("pin", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	expired := l.SweepExpired(time.Now())
	if len(expired) != 1 || expired[0].Qty != 2 {
		t.Fatalf("expected one expired reservation of 2, got %v", expired)
	}
	if avail, _ := l.Available("pin"); avail != 2 {
		t.Errorf("available = %d, want 2", avail)
	}
	l.Release(keep)
}

func TestStatus(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("cap", 10, 3)

	if s, _ := l.Status("cap"); s != inventory.InStock {
		t.Errorf("status = %v, want IN_STOCK", s)
	}
	id, _ := l.Reserve("cap", 8, time.Minute)
	if s, _ := l.Status("cap"); s != inventory.LowStock {
		t.Errorf("status = %v, want LOW_STOCK", s)
	}
	l.Release(id)
	id, _ = l.Reserve("cap", 10, time.Minute)
	if s, _ := l.Status("cap"); s != inventory.OutOfStock {
		t.Errorf("status = %v, want OUT_OF_STOCK", s)
	}
	_ = l.Commit(id)
}

func TestReserve_ConcurrentWithRestock(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("hoodie-m", 100, 5)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 500; j++ {
					if id, err := l.Reserve("hoodie-m", 1, time.Minute); err == nil {
						l.Release(id)
					}
				}
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 500; j++ {
					l.Define("hoodie-m", 100, 5)
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("ledger deadlocked under concurrent restock and reserve")
	}
	if avail, _ := l.Available("hoodie-m"); avail != 100 {
		t.Errorf("available = %d, want 100", avail)
	}
}

func TestReserve_ConcurrentLastUnit(t *testing.T) {
	l := inventory.NewLedger()
	l.Define("print", 1, 0)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Reserve("print", 1, time.Minute)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}
