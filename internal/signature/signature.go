// Package signature implements the processor's request/response signing scheme:
// SHA-1 over the secret and the non-empty field values ordered by field name,
// joined with "|".
package signature

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

const separator = "|"

var excluded = map[string]struct{}{
	"signature":                 {},
	"response_signature_string": {},
}

// Sign returns the lowercase hex signature of fields under secret.
func Sign(secret string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if _, skip := excluded[k]; skip || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, secret)
	for _, k := range keys {
		parts = append(parts, fields[k])
	}

	sum := sha1.Sum([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether got is the signature of fields under secret.
func Verify(secret string, fields map[string]string, got string) bool {
	if got == "" {
		return false
	}
	want := Sign(secret, fields)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(got)), []byte(want)) == 1
}
