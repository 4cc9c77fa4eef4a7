package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campusmkt/campus-commerce-engine/internal/adapters/crdb"
	"github.com/campusmkt/campus-commerce-engine/internal/adapters/rabbit"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/google/uuid"
)

// Emitter writes domain events to the outbox table so they survive a
// crash between the state change and the broker publish. The relay in
// Publisher drains the table.
type Emitter struct {
	repo   *crdb.Repository
	logger observability.Logger
}

func NewEmitter(repo *crdb.Repository, logger observability.Logger) *Emitter {
	return &Emitter{repo: repo, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).Error("marshal event payload")
		return
	}
	rec := crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: aggregateType(eventType),
		AggregateID:   aggregateID(payload),
		EventType:     eventType,
		Payload:       body,
		DedupeKey:     uuid.New().String(),
	}
	if err := e.repo.AppendOutbox(ctx, rec); err != nil {
		e.logger.WithError(err).WithField("event_type", eventType).Error("append outbox record")
	}
}

func aggregateType(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		return eventType[:i]
	}
	return eventType
}

func aggregateID(payload map[string]interface{}) uuid.UUID {
	for _, key := range []string{"booking_id", "order_id", "hold_id"} {
		if v, ok := payload[key]; ok {
			switch id := v.(type) {
			case uuid.UUID:
				return id
			case string:
				if parsed, err := uuid.Parse(id); err == nil {
					return parsed
				}
			}
		}
	}
	return uuid.Nil
}

// Publisher relays unpublished outbox records to the broker.
type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	interval  time.Duration
	batchSize int
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{
		repo:      repo,
		rabbitPub: rabbitPub,
		logger:    logger,
		interval:  5 * time.Second,
		batchSize: 10,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("fetch outbox records")
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithError(err).WithField("event_type", rec.EventType).Error("publish outbox record")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now(), rec.DedupeKey); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("mark outbox record published")
		}
	}
}
