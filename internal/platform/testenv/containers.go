//go:build integration

// Package testenv starts the Postgres and Kafka containers used by
// integration tests.
package testenv

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmehra2102/storefront-fulfillment/internal/platform/postgres"
)

const startupTimeout = 2 * time.Minute

// Postgres starts a database, applies the schema and returns a pool that is
// closed with the test.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	url, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Open(ctx, postgres.PoolConfig{URL: url, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

// Kafka starts a single broker and returns its addresses.
func Kafka(t *testing.T) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	c, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0", kafka.WithClusterID("storefront-test"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}
