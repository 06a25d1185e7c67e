package callback

import "net/url"

// Request is one inbound callback as received over HTTP.
type Request struct {
	Method     string
	URI        string
	RemoteAddr string
	Body       []byte
	Form       url.Values
	Query      url.Values
}

// Outcome is the result of processing a callback. A zero Kind means the
// callback was applied or acknowledged.
type Outcome struct {
	Kind         ErrorKind
	Err          error
	OrderID      string
	Acknowledged bool
}

func (o Outcome) OK() bool {
	return o.Kind == KindNone
}

// Message is the public error text for a failed outcome.
func (o Outcome) Message() string {
	return PublicMessage(o.Kind)
}
