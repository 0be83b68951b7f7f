package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

// Client reaches a remote inventory service. It satisfies the order
// service's inventory port.
type Client struct {
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

func Dial(addr string, timeout time.Duration, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn, timeout), conn, nil
}

func NewClient(cc grpc.ClientConnInterface, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{cc: cc, timeout: timeout}
}

func (c *Client) Reserve(ctx context.Context, demands []domain.Demand) ([]domain.Snapshot, error) {
	var resp ReserveResponse
	if err := c.invoke(ctx, "Reserve", &ReserveRequest{Items: demands}, &resp); err != nil {
		return nil, err
	}
	if sh := resp.Shortage; sh != nil {
		return nil, apperr.InsufficientStock(sh.ProductID, sh.Available, sh.Requested)
	}
	return resp.Items, nil
}

func (c *Client) Restore(ctx context.Context, demands []domain.Demand) error {
	return c.invoke(ctx, "Restore", &RestoreRequest{Items: demands}, &RestoreResponse{})
}

func (c *Client) Stock(ctx context.Context, productID string) (domain.Product, error) {
	var resp GetStockResponse
	if err := c.invoke(ctx, "GetStock", &GetStockRequest{ProductID: productID}, &resp); err != nil {
		return domain.Product{}, err
	}
	return resp.Product, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var trailer metadata.MD
	err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, resp,
		grpc.CallContentSubtype(codecName),
		grpc.Trailer(&trailer),
	)
	if err == nil {
		return nil
	}
	if kinds := trailer.Get(kindTrailer); len(kinds) > 0 && apperr.Kind(kinds[0]) != apperr.KindInternal {
		return apperr.Wrap(apperr.Kind(kinds[0]), status.Convert(err).Message(), err)
	}
	return fmt.Errorf("inventory %s: %w", method, err)
}
