package mongo

import (
	"context"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger appends an immutable trail of lifecycle actions. Nothing
// in the engine reads it back; disputes and support do.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditEntry struct {
	ID         uuid.UUID `bson:"_id"`
	Action     string    `bson:"action"`
	CustomerID uuid.UUID `bson:"customer_id"`
	Timestamp  time.Time `bson:"timestamp"`
	Data       bson.M    `bson:"data"`
}

func (a *AuditLogger) Log(ctx context.Context, action string, customerID uuid.UUID, data map[string]interface{}) error {
	entry := AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		CustomerID: customerID,
		Timestamp:  time.Now(),
		Data:       bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, entry)
	if err != nil {
		a.logger.WithError(err).Error("insert audit entry")
	}
	return err
}

func (a *AuditLogger) LogBooking(ctx context.Context, action string, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"service_id": b.Snapshot.ServiceID,
		"status":     b.Status,
		"payment":    b.Payment.Status,
		"slot_start": b.Slot.Start.Format(time.RFC3339),
		"slot_end":   b.Slot.End.Format(time.RFC3339),
	}
	return a.Log(ctx, action, b.Customer.ID, data)
}

func (a *AuditLogger) LogOrder(ctx context.Context, action string, order domain.Order) error {
	data := map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"total":    order.TotalAmount,
		"items":    len(order.Items),
	}
	return a.Log(ctx, action, order.CustomerID, data)
}
