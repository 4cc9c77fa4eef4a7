package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusmkt/campus-commerce-engine/internal/adapters/capture"
	"github.com/campusmkt/campus-commerce-engine/internal/adapters/crdb"
	mongoadapter "github.com/campusmkt/campus-commerce-engine/internal/adapters/mongo"
	redisadapter "github.com/campusmkt/campus-commerce-engine/internal/adapters/redis"
	"github.com/campusmkt/campus-commerce-engine/internal/booking"
	"github.com/campusmkt/campus-commerce-engine/internal/calendar"
	"github.com/campusmkt/campus-commerce-engine/internal/config"
	httphandler "github.com/campusmkt/campus-commerce-engine/internal/http"
	"github.com/campusmkt/campus-commerce-engine/internal/idempotency"
	"github.com/campusmkt/campus-commerce-engine/internal/inventory"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/campusmkt/campus-commerce-engine/internal/orchestrator"
	"github.com/campusmkt/campus-commerce-engine/internal/outbox"
	"github.com/campusmkt/campus-commerce-engine/internal/payment"
	"github.com/campusmkt/campus-commerce-engine/internal/rateLimit"
)

const lowStockThreshold = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("campus")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	cal := calendar.New()
	ledger := inventory.NewLedger()
	if err := seedLedger(context.Background(), catalog, ledger); err != nil {
		log.Fatalf("failed to seed inventory: %v", err)
	}

	captureClient := capture.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	payments := payment.NewManager(captureClient, redisCache, logger)
	bookings := booking.NewManager(cal, cfg.HoldTTL, logger)
	emitter := outbox.NewEmitter(repo, logger)
	orch := orchestrator.New(bookings, payments, ledger, repo, emitter, nil, cfg.ReservationTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.RunSweeper(ctx, cfg.SweepInterval)

	handlers := httphandler.NewHandlers(cfg, orch, repo, catalog, audit, idemp)
	router := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.ListenAddr).Info("api listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	logger.Info("server exiting")
}

// seedLedger loads stock baselines from the catalog. The ledger owns
// the counts from this point on.
func seedLedger(ctx context.Context, catalog *mongoadapter.CatalogRepository, ledger *inventory.Ledger) error {
	products, err := catalog.ListActiveProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if len(p.Variants) == 0 {
			ledger.Define(p.SKU, p.Quantity, lowStockThreshold)
			continue
		}
		for _, v := range p.Variants {
			ledger.Define(v.SKU, v.Quantity, lowStockThreshold)
		}
	}
	return nil
}
