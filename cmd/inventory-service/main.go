package main

import (
	"context"
	"os"

	"github.com/dmehra2102/storefront-fulfillment/internal/config"
	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/application"
	invgrpc "github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/grpc"
	invpg "github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront-fulfillment/internal/platform/postgres"
	"github.com/dmehra2102/storefront-fulfillment/pkg/logging"
	"github.com/dmehra2102/storefront-fulfillment/pkg/shutdown"
	"github.com/dmehra2102/storefront-fulfillment/pkg/tracing"
)

const service = "inventory-service"

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

	ledger := application.NewLedger(log, invpg.NewRepository(log, pool))
	gs := invgrpc.NewGRPCServer(log)
	invgrpc.Register(gs, invgrpc.NewServer(log, ledger))
	if err := invgrpc.Run(cfg.GRPCAddr, gs); err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	log.Info("grpc listening", "addr", cfg.GRPCAddr)

	<-ctx.Done()

	err = shutdown.Drain(log, cfg.ShutdownTimeout,
		shutdown.Step{Name: "tracing", Stop: stopTracing},
		shutdown.Step{Name: "postgres", Stop: func(context.Context) error { pool.Close(); return nil }},
		shutdown.Step{Name: "grpc", Stop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				gs.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				gs.Stop()
				return ctx.Err()
			}
		}},
	)
	if err != nil {
		log.Error("inventory-service shutdown incomplete", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-service shutdown complete")
}
