package domain

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// DefaultRequestName is the display name given to freshly created requests.
const DefaultRequestName = "Untitled Request"

// Method is an HTTP method. The set is open: the constants below are the ones
// the client offers, ParseMethod decides what is accepted.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists the supported methods in menu order.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions}

// ParseMethod normalizes s to upper case and checks it is supported.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported HTTP method %q", s)
}

// Request is a saved, named HTTP request definition.
type Request struct {
	ID        int64             `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Method    Method            `json:"method" yaml:"method"`
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	Body      string            `json:"body" yaml:"body"`
	Params    map[string]string `json:"params" yaml:"params"`
	Favorite  bool              `json:"favorite" yaml:"favorite"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// NewRequest returns a default-initialized request with the given id.
func NewRequest(id int64) Request {
	return Request{
		ID:        id,
		Name:      DefaultRequestName,
		Method:    MethodGet,
		Headers:   map[string]string{"Content-Type": "application/json"},
		Params:    map[string]string{},
		CreatedAt: Timestamp(time.Now()),
	}
}

// Clone returns a deep copy so callers can't alias the store's maps.
func (r Request) Clone() Request {
	r.Headers = cloneMap(r.Headers)
	r.Params = cloneMap(r.Params)
	return r
}

// Execution builds the execution form of the request.
func (r Request) Execution() Execution {
	return Execution{
		Method:  r.Method,
		URL:     r.URL,
		Headers: cloneMap(r.Headers),
		Body:    r.Body,
		Params:  cloneMap(r.Params),
	}
}

// Timestamp normalizes t to UTC at millisecond precision, the resolution
// the wire format (ISO-8601) keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
