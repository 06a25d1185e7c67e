package callback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Fields is the canonical key/value view of an inbound callback.
type Fields map[string]string

// Get returns the value for key, or "" when absent.
func (f Fields) Get(key string) string {
	return f[key]
}

// numericFields arrive as JSON numbers or form strings depending on transport.
var numericFields = []string{"merchant_id", "payment_id", "card_bin", "amount", "actual_amount"}

// textFields are plain text and safe to strip. signature and additional_info
// must never be touched: they are signed verbatim.
var textFields = []string{
	"order_id", "order_status", "tran_type", "currency", "sender_email",
	"card_type", "payment_system", "response_status", "masked_card",
	"approval_code", "rrn", "eci", "response_code", "response_description",
}

var (
	strictPolicy = bluemonday.StrictPolicy()
	octets       = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	angles       = strings.NewReplacer("<", "", ">", "")
)

// Normalize extracts the callback fields from the first source that yields a
// non-empty mapping: the JSON body, then the form body, then the query string.
func Normalize(raw []byte, form, query url.Values) (Fields, error) {
	fields := decodeJSON(raw)
	if len(fields) == 0 {
		fields = fromValues(form)
	}
	if len(fields) == 0 {
		fields = fromValues(query)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no callback data in body, form or query", ErrMalformedRequest)
	}

	for _, key := range numericFields {
		if v, ok := fields[key]; ok {
			fields[key] = strings.TrimSpace(v)
		}
	}
	for _, key := range textFields {
		if v, ok := fields[key]; ok {
			fields[key] = SanitizeText(v)
		}
	}
	return fields, nil
}

func decodeJSON(raw []byte) Fields {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	// Trailing data after the object makes the body invalid JSON.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil
	}

	fields := make(Fields, len(obj))
	numeric := make(map[string]struct{}, len(numericFields))
	for _, key := range numericFields {
		numeric[key] = struct{}{}
	}
	for k, v := range obj {
		_, canonical := numeric[k]
		fields[k] = stringify(v, canonical)
	}
	return fields
}

func stringify(v interface{}, canonical bool) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		if canonical {
			return canonicalNumber(val)
		}
		return val.String()
	case bool:
		// Booleans follow the processor's signing convention.
		if val {
			return "1"
		}
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

func fromValues(values url.Values) Fields {
	if len(values) == 0 {
		return nil
	}
	fields := make(Fields, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		fields[k] = vs[0]
	}
	return fields
}

// SanitizeText strips markup, control whitespace and percent-encoded octets from
// a plain-text value.
func SanitizeText(v string) string {
	if !utf8.ValidString(v) {
		return ""
	}
	if strings.Contains(v, "<") {
		v = html.UnescapeString(strictPolicy.Sanitize(v))
		v = angles.Replace(v)
	}
	v = octets.ReplaceAllString(v, "")
	return strings.Join(strings.Fields(v), " ")
}
