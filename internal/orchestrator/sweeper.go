package orchestrator

import (
	"context"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/observability"
)

// RunSweeper releases expired calendar holds and inventory
// reservations on a ticker until the context is done. Uncommitted
// claims past their TTL must never block other customers.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.SweepOnce(ctx, now)
		}
	}
}

// SweepOnce runs a single sweep pass. Split out so the sweep worker
// and tests can drive it directly.
func (o *Orchestrator) SweepOnce(ctx context.Context, now time.Time) {
	for _, hold := range o.bookings.Calendar().SweepExpired(now) {
		observability.HoldsSwept.Inc()
		o.events.Emit(ctx, "hold.expired", map[string]interface{}{
			"hold_id":  hold.HoldID,
			"resource": hold.Resource,
		})
		o.logger.WithField("hold_id", hold.HoldID).Info("released expired hold")
	}
	for _, res := range o.ledger.SweepExpired(now) {
		observability.ReservationsSwept.Inc()
		o.logger.WithField("reservation_id", res.ID).WithField("sku", res.SKU).Info("released expired reservation")
	}
}
