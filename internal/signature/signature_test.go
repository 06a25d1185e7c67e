package signature

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_SortsAndSkipsEmptyAndExcluded(t *testing.T) {
	fields := map[string]string{
		"order_status":              "approved",
		"amount":                    "2500",
		"currency":                  "UAH",
		"rrn":                       "",
		"signature":                 "ignored",
		"response_signature_string": "ignored",
	}

	sum := sha1.Sum([]byte(strings.Join([]string{"secret", "2500", "UAH", "approved"}, "|")))
	assert.Equal(t, hex.EncodeToString(sum[:]), Sign("secret", fields))
}

func TestVerify(t *testing.T) {
	fields := map[string]string{"order_id": "100_1700000001", "merchant_id": "1700002"}
	sig := Sign("test", fields)

	assert.True(t, Verify("test", fields, sig))
	assert.True(t, Verify("test", fields, strings.ToUpper(sig)))
	assert.False(t, Verify("other", fields, sig))
	assert.False(t, Verify("test", fields, ""))

	fields["order_id"] = "101_1700000001"
	assert.False(t, Verify("test", fields, sig))
}
