package callback

import (
	"crypto/subtle"
	"fmt"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/signature"
)

// Authenticator checks that a callback comes from the processor on behalf of the
// configured merchant.
type Authenticator struct {
	merchantID string
	secretKey  string
}

func NewAuthenticator(merchantID, secretKey string) *Authenticator {
	return &Authenticator{merchantID: merchantID, secretKey: secretKey}
}

func (a *Authenticator) Authenticate(fields Fields) error {
	got := fields.Get(models.FieldMerchantID)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.merchantID)) != 1 {
		return fmt.Errorf("%w: merchant mismatch", ErrAuthenticationFailed)
	}
	if !signature.Verify(a.secretKey, fields, fields.Get(models.FieldSignature)) {
		return fmt.Errorf("%w: signature mismatch", ErrAuthenticationFailed)
	}
	return nil
}
