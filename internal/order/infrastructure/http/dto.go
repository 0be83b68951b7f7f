package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	salesdomain "github.com/dmehra2102/storefront-fulfillment/internal/sales/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/money"
)

type itemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// createOrderReq carries the amounts the client computed. They are only
// compared against the server's figures, never stored.
type createOrderReq struct {
	Items           []itemReq              `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	CouponCode      string                 `json:"coupon_code"`
	Subtotal        *decimal.Decimal       `json:"subtotal"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Discount        decimal.Decimal        `json:"discount"`
	Total           *decimal.Decimal       `json:"total"`
}

func (req createOrderReq) input(userID string) (application.CreateOrderInput, error) {
	if req.Total == nil {
		return application.CreateOrderInput{}, apperr.Validation("total is required").With("field", "total")
	}
	var (
		d   application.Declared
		err error
	)
	if req.Subtotal != nil {
		sub, err := cents("subtotal", *req.Subtotal)
		if err != nil {
			return application.CreateOrderInput{}, err
		}
		d.SubtotalCents = &sub
	}
	if d.ShippingCents, err = cents("shipping", req.Shipping); err != nil {
		return application.CreateOrderInput{}, err
	}
	if d.DiscountCents, err = cents("discount", req.Discount); err != nil {
		return application.CreateOrderInput{}, err
	}
	if d.TotalCents, err = cents("total", *req.Total); err != nil {
		return application.CreateOrderInput{}, err
	}

	items := make([]application.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return application.CreateOrderInput{
		UserID:        userID,
		Items:         items,
		Shipping:      req.ShippingAddress,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		CouponCode:    req.CouponCode,
		Declared:      d,
	}, nil
}

func cents(field string, d decimal.Decimal) (int64, error) {
	c, err := money.ToCents(d)
	if err != nil {
		return 0, apperr.Validation("%s: %v", field, err).With("field", field)
	}
	return c, nil
}

type itemResp struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

type paymentResp struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type orderResp struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id,omitempty"`
	Status          domain.OrderStatus     `json:"status"`
	Items           []itemResp             `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   domain.PaymentMethod   `json:"payment_method"`
	Payment         *paymentResp           `json:"payment,omitempty"`
	CouponCode      string                 `json:"coupon_code,omitempty"`
	Subtotal        string                 `json:"subtotal"`
	Shipping        string                 `json:"shipping"`
	Discount        string                 `json:"discount"`
	Total           string                 `json:"total"`
	TrackingID      string                 `json:"tracking_id,omitempty"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	PaymentURL      string                 `json:"payment_url,omitempty"`
}

func toOrderResp(o domain.Order) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money.Format(it.PriceCents),
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	resp := orderResp{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Items:           items,
		ShippingAddress: o.Shipping,
		PaymentMethod:   o.PaymentMethod,
		CouponCode:      o.CouponCode,
		Subtotal:        money.Format(o.SubtotalCents),
		Shipping:        money.Format(o.ShippingCents),
		Discount:        money.Format(o.DiscountCents),
		Total:           money.Format(o.TotalCents),
		TrackingID:      o.TrackingID,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if p := o.Payment; p != nil {
		resp.Payment = &paymentResp{TransactionID: p.TransactionID, Status: p.Status, UpdatedAt: p.UpdatedAt}
	}
	return resp
}

type updateStatusReq struct {
	Status     string `json:"status"`
	TrackingID string `json:"tracking_id"`
}

type statsResp struct {
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
	OrderCount       int64      `json:"order_count"`
	CouponOrderCount int64      `json:"coupon_order_count"`
	Subtotal         string     `json:"subtotal"`
	Shipping         string     `json:"shipping"`
	Discount         string     `json:"discount"`
	Total            string     `json:"total"`
}

func toStatsResp(st salesdomain.Stats) statsResp {
	return statsResp{
		From:             st.From,
		To:               st.To,
		OrderCount:       st.OrderCount,
		CouponOrderCount: st.CouponOrderCount,
		Subtotal:         money.Format(st.SubtotalCents),
		Shipping:         money.Format(st.ShippingCents),
		Discount:         money.Format(st.DiscountCents),
		Total:            money.Format(st.TotalCents),
	}
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Fields  any         `json:"fields,omitempty"`
}
