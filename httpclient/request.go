package httpclient

import (
	"context"
	"time"

	"github.com/kbukum/meshkit/discovery"
)

// Request describes one outbound HTTP call.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, etc).
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL if BaseURL is empty.
	Path string
	// Headers are request-specific headers (merged with client defaults).
	Headers map[string]string
	Query   map[string]string
	// Body accepts io.Reader, []byte, string, or any value that will be
	// JSON-encoded.
	Body any
}

// Response is the result of an HTTP request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// FallbackFunc produces a substitute result once every attempt has failed
// or no instance was available. err is the failure being replaced.
type FallbackFunc func(ctx context.Context, err error) (any, error)

// RequestOptions tune a single resilient request. Zero fields take the
// client defaults.
type RequestOptions struct {
	Method  string
	Data    any
	Headers map[string]string
	Params  map[string]string
	// Timeout bounds each attempt, not the whole request.
	Timeout time.Duration
	// Retries is the number of additional attempts; nil uses the client default.
	Retries    *int
	RetryDelay time.Duration
	// LoadBalancing overrides the service's configured strategy.
	LoadBalancing discovery.Strategy
	// OnlyHealthy defaults to true.
	OnlyHealthy   *bool
	Fallback      FallbackFunc
	CorrelationID string
	RequestID     string
}

// FallbackInstanceID marks a Result produced by a fallback.
const FallbackInstanceID = "fallback"

// Result is the envelope returned by the resilient client.
type Result struct {
	// Data is the decoded JSON body, or the body as a string when it is not JSON.
	Data         any               `json:"data"`
	Status       int               `json:"status"`
	Headers      map[string]string `json:"headers,omitempty"`
	ResponseTime time.Duration     `json:"responseTime"`
	InstanceID   string            `json:"instanceId"`
	Success      bool              `json:"success"`
	// Attempts is how many calls were made to the instance.
	Attempts int `json:"attempts"`
	// Body is the raw response body.
	Body []byte `json:"-"`
}

// IsFallback reports whether the result came from a fallback.
func (r *Result) IsFallback() bool {
	return r.InstanceID == FallbackInstanceID
}

// BulkRequest is one entry of RequestBulk.
type BulkRequest struct {
	Service string
	Path    string
	Options RequestOptions
}

// BulkResult is the settled outcome of one BulkRequest.
type BulkResult struct {
	Result *Result
	Err    error
}
