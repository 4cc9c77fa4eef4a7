package crdb

import (
	"context"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	SerializationFailureCode = "40001"
)

// Repository is the durable record of bookings, orders and payment
// transactions. Bookings are never deleted; every lifecycle change is
// an UPDATE that leaves the row in place.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) SaveBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, business_id, customer_id, customer_email,
			service_id, service_name, price, duration_sec,
			deposit_kind, deposit_amount, deposit_percent, snapshot_at,
			slot_start, slot_end, status,
			payment_status, deposit_paid, total_paid, applied_refs,
			hold_id, hold_expires_at, cancel_reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
	`,
		b.ID, b.BusinessID, b.Customer.ID, b.Customer.Email,
		b.Snapshot.ServiceID, b.Snapshot.Name, b.Snapshot.Price, int64(b.Snapshot.Duration.Seconds()),
		b.Snapshot.Deposit.Kind, b.Snapshot.Deposit.Amount, b.Snapshot.Deposit.Percent, b.Snapshot.TakenAt,
		b.Slot.Start, b.Slot.End, b.Status,
		b.Payment.Status, b.Payment.DepositPaid, b.Payment.TotalPaid, b.Payment.AppliedRefs,
		b.HoldID, b.HoldExpiresAt, b.CancelReason, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *Repository) UpdateBooking(ctx context.Context, b domain.Booking) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET
			slot_start = $2, slot_end = $3, status = $4,
			payment_status = $5, deposit_paid = $6, total_paid = $7, applied_refs = $8,
			hold_id = $9, hold_expires_at = $10, cancel_reason = $11, updated_at = $12
		WHERE id = $1
	`,
		b.ID, b.Slot.Start, b.Slot.End, b.Status,
		b.Payment.Status, b.Payment.DepositPaid, b.Payment.TotalPaid, b.Payment.AppliedRefs,
		b.HoldID, b.HoldExpiresAt, b.CancelReason, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var (
		b           domain.Booking
		durationSec int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, customer_id, customer_email,
			service_id, service_name, price, duration_sec,
			deposit_kind, deposit_amount, deposit_percent, snapshot_at,
			slot_start, slot_end, status,
			payment_status, deposit_paid, total_paid, applied_refs,
			hold_id, hold_expires_at, cancel_reason, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(
		&b.ID, &b.BusinessID, &b.Customer.ID, &b.Customer.Email,
		&b.Snapshot.ServiceID, &b.Snapshot.Name, &b.Snapshot.Price, &durationSec,
		&b.Snapshot.Deposit.Kind, &b.Snapshot.Deposit.Amount, &b.Snapshot.Deposit.Percent, &b.Snapshot.TakenAt,
		&b.Slot.Start, &b.Slot.End, &b.Status,
		&b.Payment.Status, &b.Payment.DepositPaid, &b.Payment.TotalPaid, &b.Payment.AppliedRefs,
		&b.HoldID, &b.HoldExpiresAt, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Snapshot.Duration = time.Duration(durationSec) * time.Second
	return &b, nil
}

func (r *Repository) SaveOrder(ctx context.Context, order domain.Order) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, status, subtotal, shipping, tax, discount, total_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, order.ID, order.CustomerID, order.Status, order.Subtotal, order.Shipping, order.Tax, order.Discount, order.TotalAmount, order.CreatedAt)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range order.Items {
			item := item
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO order_items (order_id, product_id, variant_id, sku, seller_id, unit_price, quantity)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, order.ID, item.ProductID, item.VariantID, item.SKU, item.SellerID, item.UnitPrice, item.Quantity)
				return err
			})
		}
		return g.Wait()
	})
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, orderID, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, status, subtotal, shipping, tax, discount, total_amount, created_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&order.ID, &order.CustomerID, &order.Status, &order.Subtotal, &order.Shipping, &order.Tax, &order.Discount, &order.TotalAmount, &order.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, variant_id, sku, seller_id, unit_price, quantity
		FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.SKU, &item.SellerID, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return &order, rows.Err()
}

func (r *Repository) SavePaymentTransaction(ctx context.Context, txn domain.PaymentTransaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_transactions (id, booking_id, order_id, type, amount, currency, status, external_ref, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, nullUUID(txn.BookingID), nullUUID(txn.OrderID), txn.Type, txn.Amount, txn.Currency, txn.Status, txn.ExternalRef, txn.Reason, txn.CreatedAt)
	return err
}

// ListExpiredPendingHolds returns Pending bookings whose hold TTL has
// lapsed. The sweep worker releases them and emits hold.expired.
func (r *Repository) ListExpiredPendingHolds(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, hold_id, slot_start, slot_end
		FROM bookings WHERE status = 'PENDING' AND hold_expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.HoldID, &b.Slot.Start, &b.Slot.End); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListUpcomingConfirmed returns confirmed bookings starting inside
// [now, now+window), for reminder events.
func (r *Repository) ListUpcomingConfirmed(ctx context.Context, now time.Time, window time.Duration) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, customer_id, customer_email, slot_start, slot_end
		FROM bookings WHERE status = 'CONFIRMED' AND slot_start >= $1 AND slot_start < $2
	`, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.Customer.ID, &b.Customer.Email, &b.Slot.Start, &b.Slot.End); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
