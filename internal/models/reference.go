package models

import (
	"strconv"
	"strings"
	"time"
)

// ReferenceSeparator joins the order id and the disambiguator of a payment reference.
const ReferenceSeparator = "_"

// NewReference builds the processor-side order reference for a checkout attempt.
func NewReference(orderID string, at time.Time) string {
	return orderID + ReferenceSeparator + strconv.FormatInt(at.Unix(), 10)
}

// ParseReference splits ref on the first separator. ok is false when there is
// no separator or the order id part is empty.
func ParseReference(ref string) (orderID, disambiguator string, ok bool) {
	orderID, disambiguator, found := strings.Cut(ref, ReferenceSeparator)
	if !found || orderID == "" {
		return "", "", false
	}
	return orderID, disambiguator, true
}
