package application

import (
	"fmt"
	"strings"
	"unicode/utf8"

	orderdomain "github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/payment/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/money"
)

// maxItemNameLen counts characters, not bytes.
const maxItemNameLen = 100

type Gateway struct {
	cfg    domain.GatewayConfig
	signer Signer
}

func NewGateway(cfg domain.GatewayConfig) *Gateway {
	return &Gateway{cfg: cfg, signer: NewSigner(cfg.Passphrase)}
}

func (g *Gateway) Signer() Signer { return g.signer }

// RedirectParams is the unsigned parameter set for o.
func (g *Gateway) RedirectParams(o orderdomain.Order) map[string]string {
	return map[string]string{
		domain.FieldMerchantID:   g.cfg.MerchantID,
		domain.FieldMerchantKey:  g.cfg.MerchantKey,
		domain.FieldReturnURL:    g.cfg.ReturnURL,
		domain.FieldCancelURL:    g.cfg.CancelURL,
		domain.FieldNotifyURL:    g.cfg.NotifyURL,
		domain.FieldNameFirst:    o.Shipping.FullName,
		domain.FieldEmailAddress: o.Shipping.Email,
		domain.FieldOrderID:      o.ID,
		domain.FieldAmount:       money.Format(o.TotalCents),
		domain.FieldItemName:     itemName(o),
	}
}

// RedirectURL returns the browser redirect that starts payment for o.
func (g *Gateway) RedirectURL(o orderdomain.Order) (string, error) {
	if o.PaymentMethod != orderdomain.PaymentGateway {
		return "", apperr.Newf(apperr.KindValidation, "order %s is not paid through the gateway", o.ID)
	}
	if o.Status == orderdomain.StatusCancelled {
		return "", apperr.Newf(apperr.KindConflict, "order %s is cancelled", o.ID)
	}
	if o.IsPaid() {
		return "", apperr.Newf(apperr.KindConflict, "order %s is already paid", o.ID)
	}

	params := g.RedirectParams(o)
	sep := "?"
	if strings.Contains(g.cfg.ProcessURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s&%s=%s", g.cfg.ProcessURL, sep, g.signer.Encode(params), domain.FieldSignature, g.signer.Sign(params)), nil
}

func itemName(o orderdomain.Order) string {
	var name string
	switch len(o.Items) {
	case 0:
		name = "Order " + o.ID
	case 1:
		name = o.Items[0].Name
	default:
		name = fmt.Sprintf("%s and %d more", o.Items[0].Name, len(o.Items)-1)
	}
	if utf8.RuneCountInString(name) > maxItemNameLen {
		name = string([]rune(name)[:maxItemNameLen])
	}
	return name
}
