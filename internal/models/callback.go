package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CallbackStatus is the processor-side order status carried by a callback.
type CallbackStatus string

const (
	CallbackCreated    CallbackStatus = "created"
	CallbackProcessing CallbackStatus = "processing"
	CallbackApproved   CallbackStatus = "approved"
	CallbackDeclined   CallbackStatus = "declined"
	CallbackExpired    CallbackStatus = "expired"
	CallbackReversed   CallbackStatus = "reversed"
)

func (s CallbackStatus) Valid() bool {
	switch s {
	case CallbackCreated, CallbackProcessing, CallbackApproved,
		CallbackDeclined, CallbackExpired, CallbackReversed:
		return true
	}
	return false
}

// Wire field names of the processor callback.
const (
	FieldOrderID                 = "order_id"
	FieldPaymentID               = "payment_id"
	FieldOrderStatus             = "order_status"
	FieldMerchantID              = "merchant_id"
	FieldSignature               = "signature"
	FieldResponseSignatureString = "response_signature_string"
	FieldAmount                  = "amount"
	FieldActualAmount            = "actual_amount"
	FieldCurrency                = "currency"
	FieldReversalAmount          = "reversal_amount"
	FieldTranType                = "tran_type"
	FieldCardBin                 = "card_bin"
	FieldMaskedCard              = "masked_card"
	FieldCardType                = "card_type"
	FieldPaymentSystem           = "payment_system"
	FieldResponseCode            = "response_code"
	FieldResponseDescription     = "response_description"
	FieldSenderEmail             = "sender_email"
	FieldAdditionalInfo          = "additional_info"
)

const TranTypeReverse = "reverse"

// CallbackPayload is the typed view of an authenticated callback.
type CallbackPayload struct {
	PaymentReference       string
	ProcessorTransactionID string
	Status                 CallbackStatus
	MerchantID             string
	Signature              string
	Amount                 string
	ActualAmount           string
	Currency               string
	TranType               string
	ReversalAmount         string
	Card                   CardMetadata
	ResponseCode           string
	ResponseDescription    string
	SenderEmail            string
}

type CardMetadata struct {
	Bin           string
	Masked        string
	Type          string
	PaymentSystem string
}

// IsReversal reports whether the callback is an after-the-fact reversal notice.
func (p *CallbackPayload) IsReversal() bool {
	if hasReversalAmount(p.ReversalAmount) {
		return true
	}
	return p.TranType == TranTypeReverse || p.Status == CallbackReversed
}

// hasReversalAmount treats any zero spelling ("0", "0.0", "0.00") as absent.
// Unparseable non-empty values count as a reversal.
func hasReversalAmount(v string) bool {
	if v == "" {
		return false
	}
	amount, err := decimal.NewFromString(v)
	if err != nil {
		return true
	}
	return !amount.IsZero()
}

// TransitionEvent describes a state machine step for the extension points.
type TransitionEvent struct {
	OrderID       string
	Reference     string
	TransactionID string
	Callback      CallbackStatus
	From          OrderStatus
	To            OrderStatus
	Applied       bool
	Note          string
	OccurredAt    time.Time
}
