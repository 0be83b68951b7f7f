package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/logging"
)

const bufSize = 1 << 20

func newClient(t *testing.T, store *memory.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	gs := NewGRPCServer(logging.Discard())
	Register(gs, NewServer(logging.Discard(), application.NewLedger(logging.Discard(), store)))
	go func() { _ = gs.Serve(lis) }()

	client, conn, err := Dial("passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		gs.GracefulStop()
		_ = lis.Close()
	})
	return client
}

func TestReserveAndRestoreOverGRPC(t *testing.T) {
	store := memory.NewStore(
		domain.Product{ID: "mug", Name: "Mug", PriceCents: 2500, Stock: 5},
		domain.Product{ID: "tee", Name: "Tee", PriceCents: 5000, Stock: 1},
	)
	client := newClient(t, store)
	ctx := context.Background()

	snaps, err := client.Reserve(ctx, []domain.Demand{{ProductID: "mug", Quantity: 2}, {ProductID: "tee", Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, domain.Snapshot{ProductID: "mug", Name: "Mug", PriceCents: 2500, Quantity: 2}, snaps[0])

	p, err := client.Stock(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	require.NoError(t, client.Restore(ctx, []domain.Demand{{ProductID: "mug", Quantity: 2}}))
	p, err = client.Stock(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestReserveShortageOverGRPC(t *testing.T) {
	store := memory.NewStore(
		domain.Product{ID: "mug", Name: "Mug", PriceCents: 2500, Stock: 5},
		domain.Product{ID: "tee", Name: "Tee", PriceCents: 5000, Stock: 1},
	)
	client := newClient(t, store)

	_, err := client.Reserve(context.Background(), []domain.Demand{{ProductID: "mug", Quantity: 2}, {ProductID: "tee", Quantity: 3}})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "tee", ae.Fields["product_id"])
	assert.Equal(t, 1, ae.Fields["available"])
	assert.Equal(t, 3, ae.Fields["requested"])

	p, err := client.Stock(context.Background(), "mug")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestErrorKindsSurviveTheWire(t *testing.T) {
	client := newClient(t, memory.NewStore())

	_, err := client.Stock(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	_, err = client.Reserve(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
