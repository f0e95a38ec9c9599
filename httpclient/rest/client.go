package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/meshkit/httpclient"
)

// Client is a JSON-focused view of a resilient client. Every request sends
// Accept: application/json and decodes the body into the caller's type.
type Client struct {
	http *httpclient.Resilient
}

func New(c *httpclient.Resilient) *Client {
	return &Client{http: c}
}

// HTTP returns the underlying resilient client.
func (c *Client) HTTP() *httpclient.Resilient {
	return c.http
}

// RequestOption configures a single REST request.
type RequestOption func(*httpclient.RequestOptions)

func WithQuery(params map[string]string) RequestOption {
	return func(o *httpclient.RequestOptions) {
		o.Params = params
	}
}

// WithHeaders adds headers to the request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *httpclient.RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

func WithTimeout(d time.Duration) RequestOption {
	return func(o *httpclient.RequestOptions) {
		o.Timeout = d
	}
}

func WithRetries(n int) RequestOption {
	return func(o *httpclient.RequestOptions) {
		o.Retries = httpclient.Ptr(n)
	}
}

func WithCorrelationID(id string) RequestOption {
	return func(o *httpclient.RequestOptions) {
		o.CorrelationID = id
	}
}

// WithFallback serves value when the request fails for good.
func WithFallback[T any](value T) RequestOption {
	return func(o *httpclient.RequestOptions) {
		o.Fallback = func(context.Context, error) (any, error) {
			return value, nil
		}
	}
}

// Response wraps a typed REST response.
type Response[T any] struct {
	StatusCode int
	Headers    map[string]string
	InstanceID string
	// Fallback is set when Data came from WithFallback.
	Fallback bool
	Data     T
}

// Get performs a GET request against service and decodes the JSON response into T.
func Get[T any](ctx context.Context, c *Client, service, path string, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, c, http.MethodGet, service, path, nil, opts...)
}

// Post sends body as JSON and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, service, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, c, http.MethodPost, service, path, body, opts...)
}

func Put[T any](ctx context.Context, c *Client, service, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, c, http.MethodPut, service, path, body, opts...)
}

func Patch[T any](ctx context.Context, c *Client, service, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, c, http.MethodPatch, service, path, body, opts...)
}

func Delete[T any](ctx context.Context, c *Client, service, path string, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, c, http.MethodDelete, service, path, nil, opts...)
}

func do[T any](ctx context.Context, c *Client, method, service, path string, body any, opts ...RequestOption) (*Response[T], error) {
	ro := httpclient.RequestOptions{
		Method:  method,
		Data:    body,
		Headers: map[string]string{"Accept": "application/json"},
	}
	for _, opt := range opts {
		opt(&ro)
	}

	res, err := c.http.Request(ctx, service, path, ro)
	if err != nil {
		// Error responses often carry a JSON body worth decoding.
		var he *httpclient.Error
		if errors.As(err, &he) && len(he.Body) > 0 {
			var data T
			if jsonErr := json.Unmarshal(he.Body, &data); jsonErr == nil {
				return &Response[T]{StatusCode: he.StatusCode, Data: data}, err
			}
		}
		return nil, err
	}

	if res.IsFallback() {
		data, ok := res.Data.(T)
		if !ok {
			return nil, fmt.Errorf("httpclient/rest: fallback value is %T, want %T", res.Data, data)
		}
		return &Response[T]{InstanceID: res.InstanceID, Fallback: true, Data: data}, nil
	}

	var data T
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &data); err != nil {
			return nil, fmt.Errorf("httpclient/rest: decode response: %w", err)
		}
	}
	return &Response[T]{
		StatusCode: res.Status,
		Headers:    res.Headers,
		InstanceID: res.InstanceID,
		Data:       data,
	}, nil
}
