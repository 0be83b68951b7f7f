package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/storefront-fulfillment/internal/config"
	couponapp "github.com/dmehra2102/storefront-fulfillment/internal/coupon/application"
	couponpg "github.com/dmehra2102/storefront-fulfillment/internal/coupon/infrastructure/postgres"
	invapp "github.com/dmehra2102/storefront-fulfillment/internal/inventory/application"
	invgrpc "github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/grpc"
	invpg "github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront-fulfillment/internal/notification"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	orderhttp "github.com/dmehra2102/storefront-fulfillment/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/storefront-fulfillment/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/storefront-fulfillment/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/storefront-fulfillment/internal/payment/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/platform/postgres"
	salesapp "github.com/dmehra2102/storefront-fulfillment/internal/sales/application"
	"github.com/dmehra2102/storefront-fulfillment/pkg/idempotency"
	"github.com/dmehra2102/storefront-fulfillment/pkg/logging"
	"github.com/dmehra2102/storefront-fulfillment/pkg/outbox"
	"github.com/dmehra2102/storefront-fulfillment/pkg/shutdown"
	"github.com/dmehra2102/storefront-fulfillment/pkg/tracing"
)

const service = "order-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(service, "info").Error("config invalid", "err", err)
		os.Exit(1)
	}
	log := logging.New(service, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, service, cfg.OTelEndpoint)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := postgres.Open(ctx, postgres.PoolConfig{URL: cfg.PGURL, MaxConns: cfg.PGMaxConns, Timeout: cfg.ExternalCallTimeout})
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	writer := orderkafka.NewWriter(cfg.KafkaAddrs)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DialTimeout: cfg.ExternalCallTimeout})

	// Stock lives either behind the inventory service or in the shared database.
	var inventory application.Inventory = invapp.NewLedger(log, invpg.NewRepository(log, pool))
	closeInventory := func(context.Context) error { return nil }
	if cfg.InventoryGRPCAddr != "" {
		client, conn, err := invgrpc.Dial(cfg.InventoryGRPCAddr, cfg.ExternalCallTimeout)
		if err != nil {
			log.Error("inventory client failed", "err", err)
			os.Exit(1)
		}
		inventory = client
		closeInventory = func(context.Context) error { return conn.Close() }
		log.Info("using remote inventory", "addr", cfg.InventoryGRPCAddr)
	}

	notifier := notification.NewDispatcher(log,
		orderkafka.NewNotificationPublisher(writer, cfg.NotifyTopic),
		notification.Config{Workers: cfg.NotifyWorkers, SendTimeout: cfg.ExternalCallTimeout},
	)

	repo := orderpg.NewRepository(log, pool, service)
	orders := application.NewService(log, repo, inventory, couponapp.NewValidator(couponpg.NewRepository(pool)), notifier)
	gateway := paymentapp.NewGateway(cfg.Payment)
	webhook := paymentapp.NewWebhookHandler(log, gateway, orders)
	sales := salesapp.NewAggregator(log, repo)

	idem := idempotency.NewStore(rdb, "checkout", cfg.IdempotencyTTL)
	handler := orderhttp.NewHandler(log, orders, gateway, webhook, sales,
		orderhttp.WithCheckoutMiddleware(idempotency.Middleware(log, idem, func(r *http.Request) string {
			return r.Header.Get(orderhttp.HeaderUserID)
		})),
	)

	relay := outbox.NewRelay(log,
		orderpg.NewOutboxStore(log, pool),
		outbox.NewDispatcher(log, writer, cfg.OutboxTopic),
		service+"-"+uuid.NewString(),
	)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(relayCtx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	restockCtx, stopRestock := context.WithCancel(context.Background())
	restockDone := make(chan struct{})
	go func() {
		defer close(restockDone)
		if err := orders.RunRestockRetries(restockCtx, cfg.RestockRetryInterval, 50); err != nil {
			log.Error("restock retries stopped with error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	err = shutdown.Drain(log, cfg.ShutdownTimeout,
		shutdown.Step{Name: "tracing", Stop: stopTracing},
		shutdown.Step{Name: "postgres", Stop: func(context.Context) error { pool.Close(); return nil }},
		shutdown.Step{Name: "kafka", Stop: func(context.Context) error { return writer.Close() }},
		shutdown.Step{Name: "redis", Stop: func(context.Context) error { return rdb.Close() }},
		shutdown.Step{Name: "inventory", Stop: closeInventory},
		shutdown.Step{Name: "relay", Stop: func(ctx context.Context) error {
			stopRelay()
			select {
			case <-relayDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		shutdown.Step{Name: "restock", Stop: func(ctx context.Context) error {
			stopRestock()
			select {
			case <-restockDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		shutdown.Step{Name: "notifications", Stop: notifier.Close},
		shutdown.Step{Name: "http", Stop: srv.Shutdown},
	)
	if err != nil {
		log.Error("order-service shutdown incomplete", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}
