package application

import (
	"context"
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/payment/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/money"
)

// Orders is the part of the order service a webhook needs.
type Orders interface {
	FindOrder(ctx context.Context, id string) (orderdomain.Order, error)
	ApplyPayment(ctx context.Context, id string, result orderdomain.PaymentResult, target orderdomain.OrderStatus) (orderdomain.Order, error)
}

type WebhookHandler struct {
	log     *slog.Logger
	gateway *Gateway
	orders  Orders
	tracer  trace.Tracer
}

func NewWebhookHandler(log *slog.Logger, gateway *Gateway, orders Orders) *WebhookHandler {
	return &WebhookHandler{
		log:     log,
		gateway: gateway,
		orders:  orders,
		tracer:  otel.Tracer("payment-webhook"),
	}
}

// Handle verifies n and applies it to its order. Delivering the same
// notification again leaves the order as the first delivery left it.
func (h *WebhookHandler) Handle(ctx context.Context, n domain.Notification) (orderdomain.Order, error) {
	ctx, span := h.tracer.Start(ctx, "Webhook.Handle", trace.WithAttributes(
		attribute.String("order_id", n.OrderID()), attribute.String("provider_status", n.Status())))
	defer span.End()

	if !h.gateway.signer.Verify(n) {
		h.log.Warn("payment notification rejected", "reason", "signature", "order_id", n.OrderID())
		return orderdomain.Order{}, apperr.ErrSignatureMismatch
	}
	if n.MerchantID() != "" && n.MerchantID() != h.gateway.cfg.MerchantID {
		h.log.Warn("payment notification rejected", "reason", "merchant", "order_id", n.OrderID())
		return orderdomain.Order{}, apperr.ErrSignatureMismatch
	}
	if n.OrderID() == "" {
		return orderdomain.Order{}, apperr.Validation("notification has no order id")
	}

	o, err := h.orders.FindOrder(ctx, n.OrderID())
	if err != nil {
		return orderdomain.Order{}, err
	}
	if gross := n.AmountGross(); gross != "" {
		cents, err := money.Parse(gross)
		if err != nil {
			return orderdomain.Order{}, apperr.Validation("notification amount: %v", err)
		}
		if cents != o.TotalCents {
			h.log.Warn("payment notification rejected", "reason", "amount", "order_id", o.ID,
				"amount_gross", gross, "total", money.Format(o.TotalCents))
			return orderdomain.Order{}, apperr.Newf(apperr.KindAmountMismatch, "paid amount does not match order total")
		}
	}

	result := orderdomain.PaymentResult{
		TransactionID: n.TransactionID(),
		Status:        n.Status(),
		Raw:           maps.Clone(map[string]string(n)),
	}
	updated, err := h.orders.ApplyPayment(ctx, o.ID, result, TargetStatus(n.Status()))
	if err != nil {
		span.RecordError(err)
		return orderdomain.Order{}, err
	}
	h.log.Info("payment notification applied", "order_id", o.ID, "provider_status", result.Status, "status", updated.Status)
	return updated, nil
}

// TargetStatus maps a provider state to the order status it implies. Empty
// means the order keeps its status: orders are created processing, so a
// completed payment leaves them there or wherever an admin has moved them
// since. Pending states are only recorded.
func TargetStatus(providerStatus string) orderdomain.OrderStatus {
	switch providerStatus {
	case domain.StatusFailed, domain.StatusCancelled:
		return orderdomain.StatusCancelled
	default:
		return ""
	}
}
