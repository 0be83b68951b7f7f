package domain

import "strings"

// Field names of the gateway's redirect and notification payloads.
const (
	FieldMerchantID    = "merchant_id"
	FieldMerchantKey   = "merchant_key"
	FieldReturnURL     = "return_url"
	FieldCancelURL     = "cancel_url"
	FieldNotifyURL     = "notify_url"
	FieldNameFirst     = "name_first"
	FieldEmailAddress  = "email_address"
	FieldOrderID       = "m_payment_id"
	FieldAmount        = "amount"
	FieldItemName      = "item_name"
	FieldTransactionID = "pf_payment_id"
	FieldPaymentStatus = "payment_status"
	FieldAmountGross   = "amount_gross"
	FieldSignature     = "signature"
	FieldPassphrase    = "passphrase"
)

// Provider payment states.
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusPending   = "PENDING"
)

type GatewayConfig struct {
	MerchantID  string
	MerchantKey string
	// Passphrase is the optional shared secret mixed into every signature.
	Passphrase string
	ProcessURL string
	ReturnURL  string
	CancelURL  string
	NotifyURL  string
}

// Notification is an inbound webhook payload. It is never stored as is; its
// fields end up in the order's payment result.
type Notification map[string]string

func (n Notification) get(k string) string { return strings.TrimSpace(n[k]) }

func (n Notification) OrderID() string       { return n.get(FieldOrderID) }
func (n Notification) TransactionID() string { return n.get(FieldTransactionID) }
func (n Notification) Signature() string     { return n.get(FieldSignature) }
func (n Notification) AmountGross() string   { return n.get(FieldAmountGross) }
func (n Notification) MerchantID() string    { return n.get(FieldMerchantID) }

func (n Notification) Status() string {
	return strings.ToUpper(n.get(FieldPaymentStatus))
}
