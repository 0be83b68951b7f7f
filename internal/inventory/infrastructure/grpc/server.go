// Package grpc exposes the inventory ledger to other services.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

const (
	serviceName = "inventory.v1.InventoryService"
	// kindTrailer carries the error kind so clients can rebuild typed errors.
	kindTrailer = "x-error-kind"
)

type Ledger interface {
	Reserve(ctx context.Context, demands []domain.Demand) ([]domain.Snapshot, error)
	Restore(ctx context.Context, demands []domain.Demand) error
	Stock(ctx context.Context, productID string) (domain.Product, error)
}

type Server struct {
	log    *slog.Logger
	ledger Ledger
}

func NewServer(log *slog.Logger, ledger Ledger) *Server {
	return &Server{log: log, ledger: ledger}
}

func (s *Server) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	snaps, err := s.ledger.Reserve(ctx, req.Items)
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindInsufficientStock {
		return &ReserveResponse{Shortage: shortageOf(ae)}, nil
	}
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ReserveResponse{Items: snaps}, nil
}

func (s *Server) Restore(ctx context.Context, req *RestoreRequest) (*RestoreResponse, error) {
	if err := s.ledger.Restore(ctx, req.Items); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &RestoreResponse{}, nil
}

func (s *Server) GetStock(ctx context.Context, req *GetStockRequest) (*GetStockResponse, error) {
	p, err := s.ledger.Stock(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &GetStockResponse{Product: p}, nil
}

// Register installs the inventory service on gs.
func Register(gs *grpc.Server, srv *Server) {
	gs.RegisterService(&serviceDesc, srv)
}

func NewGRPCServer(log *slog.Logger) *grpc.Server {
	return grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
}

func Run(addr string, gs *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		_ = gs.Serve(lis)
	}()
	return nil
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc request", "method", info.FullMethod, "code", status.Code(err).String(), "took", time.Since(start))
		return resp, err
	}
}

func shortageOf(e *apperr.Error) *domain.Shortage {
	sh := &domain.Shortage{}
	sh.ProductID, _ = e.Fields["product_id"].(string)
	sh.Available, _ = e.Fields["available"].(int)
	sh.Requested, _ = e.Fields["requested"].(int)
	return sh
}

func toStatus(ctx context.Context, err error) error {
	kind := apperr.KindOf(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(kindTrailer, string(kind)))

	code := codes.Internal
	switch kind {
	case apperr.KindValidation:
		code = codes.InvalidArgument
	case apperr.KindProductNotFound:
		code = codes.NotFound
	case apperr.KindInsufficientStock:
		code = codes.FailedPrecondition
	}
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func unaryHandler[Req, Resp any](call func(*Server, context.Context, *Req) (*Resp, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reserve", Handler: unaryHandler((*Server).Reserve, "Reserve")},
		{MethodName: "Restore", Handler: unaryHandler((*Server).Restore, "Restore")},
		{MethodName: "GetStock", Handler: unaryHandler((*Server).GetStock, "GetStock")},
	},
	Metadata: "inventory/v1/inventory.proto",
}
