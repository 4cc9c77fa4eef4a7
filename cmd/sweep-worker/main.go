package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/campusmkt/campus-commerce-engine/internal/adapters/crdb"
	"github.com/campusmkt/campus-commerce-engine/internal/adapters/rabbit"
	redisadapter "github.com/campusmkt/campus-commerce-engine/internal/adapters/redis"
	"github.com/campusmkt/campus-commerce-engine/internal/config"
	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewSweepWorker(repo, redisCache, rabbitPub, cfg.ReminderWindow, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown sweep worker")
}

// SweepWorker handles the durable half of expiry. The in-process
// sweeper frees calendar slots; this worker cancels the stale Pending
// rows, announces the expiry, and sends reminders for upcoming
// confirmed bookings.
type SweepWorker struct {
	repo           *crdb.Repository
	redis          *redisadapter.Cache
	rabbitPub      *rabbit.Publisher
	reminderWindow time.Duration
	logger         observability.Logger
}

func NewSweepWorker(repo *crdb.Repository, redis *redisadapter.Cache, rabbitPub *rabbit.Publisher, reminderWindow time.Duration, logger observability.Logger) *SweepWorker {
	return &SweepWorker{
		repo:           repo,
		redis:          redis,
		rabbitPub:      rabbitPub,
		reminderWindow: reminderWindow,
		logger:         logger,
	}
}

func (w *SweepWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.sweepExpired(ctx, now)
			w.sendReminders(ctx, now)
		}
	}
}

func (w *SweepWorker) sweepExpired(ctx context.Context, now time.Time) {
	expired, err := w.repo.ListExpiredPendingHolds(ctx, now)
	if err != nil {
		w.logger.WithError(err).Error("list expired holds")
		return
	}
	for _, stale := range expired {
		if err := w.expireWithRetry(ctx, stale.ID); err != nil {
			w.logger.WithError(err).WithField("booking_id", stale.ID).Error("expire booking after retries")
		}
	}
}

func (w *SweepWorker) expireWithRetry(ctx context.Context, bookingID uuid.UUID) error {
	const maxRetries = 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = w.expire(ctx, bookingID); lastErr == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (w *SweepWorker) expire(ctx context.Context, bookingID uuid.UUID) error {
	b, err := w.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status != domain.BookingPending {
		return nil
	}
	b.Status = domain.BookingCancelled
	b.CancelReason = "hold expired"
	if err := w.repo.UpdateBooking(ctx, *b); err != nil {
		return err
	}
	return w.publish(ctx, "hold.expired", map[string]interface{}{
		"booking_id": b.ID,
		"hold_id":    b.HoldID,
	})
}

func (w *SweepWorker) sendReminders(ctx context.Context, now time.Time) {
	upcoming, err := w.repo.ListUpcomingConfirmed(ctx, now, w.reminderWindow)
	if err != nil {
		w.logger.WithError(err).Error("list upcoming bookings")
		return
	}
	for _, b := range upcoming {
		// One reminder per booking. The SetNX key outlives the window
		// so a restart does not re-send.
		fresh, err := w.redis.Client().SetNX(ctx, "reminder:"+b.ID.String(), 1, 2*w.reminderWindow).Result()
		if err != nil || !fresh {
			continue
		}
		err = w.publish(ctx, "booking.reminder", map[string]interface{}{
			"booking_id":     b.ID,
			"customer_id":    b.Customer.ID,
			"customer_email": b.Customer.Email,
			"slot_start":     b.Slot.Start.Format(time.RFC3339),
		})
		if err != nil {
			w.logger.WithError(err).WithField("booking_id", b.ID).Error("publish reminder")
		}
	}
}

func (w *SweepWorker) publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}
	return w.rabbitPub.Publish(ctx, eventType, msg)
}
