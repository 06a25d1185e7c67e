package callback

import "errors"

var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnknownOrder         = errors.New("unknown order")
	ErrUnrecognizedStatus   = errors.New("unrecognized status")
	ErrDependencyFailure    = errors.New("dependency failure")
)

type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindMalformedRequest     ErrorKind = "malformed_request"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindUnknownOrder         ErrorKind = "unknown_order"
	KindUnrecognizedStatus   ErrorKind = "unrecognized_status"
	KindDependencyFailure    ErrorKind = "dependency_failure"
)

// KindOf classifies err. Errors outside the taxonomy count as dependency failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedRequest):
		return KindMalformedRequest
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrUnknownOrder):
		return KindUnknownOrder
	case errors.Is(err, ErrUnrecognizedStatus):
		return KindUnrecognizedStatus
	default:
		return KindDependencyFailure
	}
}

// PublicMessage is the only error text echoed back to the caller.
func PublicMessage(kind ErrorKind) string {
	switch kind {
	case KindMalformedRequest:
		return "no valid callback data received"
	case KindAuthenticationFailed:
		return "invalid callback credentials"
	case KindUnknownOrder:
		return "order not found"
	case KindUnrecognizedStatus:
		return "unhandled order status"
	case KindNone:
		return ""
	default:
		return "callback processing failed"
	}
}
