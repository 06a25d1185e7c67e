package callback

import (
	"fmt"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// Parse builds the typed payload from authenticated fields.
func Parse(fields Fields) (*models.CallbackPayload, error) {
	status := models.CallbackStatus(fields.Get(models.FieldOrderStatus))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, status)
	}

	return &models.CallbackPayload{
		PaymentReference:       fields.Get(models.FieldOrderID),
		ProcessorTransactionID: fields.Get(models.FieldPaymentID),
		Status:                 status,
		MerchantID:             fields.Get(models.FieldMerchantID),
		Signature:              fields.Get(models.FieldSignature),
		Amount:                 fields.Get(models.FieldAmount),
		ActualAmount:           fields.Get(models.FieldActualAmount),
		Currency:               fields.Get(models.FieldCurrency),
		TranType:               fields.Get(models.FieldTranType),
		ReversalAmount:         fields.Get(models.FieldReversalAmount),
		Card: models.CardMetadata{
			Bin:           fields.Get(models.FieldCardBin),
			Masked:        fields.Get(models.FieldMaskedCard),
			Type:          fields.Get(models.FieldCardType),
			PaymentSystem: fields.Get(models.FieldPaymentSystem),
		},
		ResponseCode:        fields.Get(models.FieldResponseCode),
		ResponseDescription: fields.Get(models.FieldResponseDescription),
		SenderEmail:         fields.Get(models.FieldSenderEmail),
	}, nil
}
