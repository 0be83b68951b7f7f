package grpc

import "github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"

type ReserveRequest struct {
	Items []domain.Demand `json:"items"`
}

// ReserveResponse carries either the reserved snapshots or the first
// shortage that aborted the reservation.
type ReserveResponse struct {
	Items    []domain.Snapshot `json:"items,omitempty"`
	Shortage *domain.Shortage  `json:"shortage,omitempty"`
}

type RestoreRequest struct {
	Items []domain.Demand `json:"items"`
}

type RestoreResponse struct{}

type GetStockRequest struct {
	ProductID string `json:"product_id"`
}

type GetStockResponse struct {
	Product domain.Product `json:"product"`
}
