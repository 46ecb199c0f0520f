package domain

import (
	"bytes"
	"encoding/json"
)

// Execution is one HTTP call to perform. Params are merged into the URL
// query for GET requests only.
type Execution struct {
	URL     string            `json:"url"`
	Method  Method            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// Response is the normalized outcome of a successful HTTP call.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"status_text"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	TimeMS     int64             `json:"time_ms"`
	Size       int               `json:"size"`
}

// Status classes reported by StatusClass.
const (
	StatusInformational = "informational"
	StatusSuccess       = "success"
	StatusRedirect      = "redirect"
	StatusClientError   = "client_error"
	StatusServerError   = "server_error"
)

// StatusClass buckets the status code for presentation.
func (r Response) StatusClass() string {
	switch {
	case r.Status >= 500:
		return StatusServerError
	case r.Status >= 400:
		return StatusClientError
	case r.Status >= 300:
		return StatusRedirect
	case r.Status >= 200:
		return StatusSuccess
	default:
		return StatusInformational
	}
}

// PrettyBody returns the body indented when it is JSON, unchanged otherwise.
func (r Response) PrettyBody() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(r.Body), "", "  "); err != nil {
		return r.Body
	}
	return buf.String()
}
