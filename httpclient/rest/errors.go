package rest

import "github.com/kbukum/meshkit/httpclient"

// Re-exports of the httpclient classification so callers of this package
// need not import httpclient for error checks.

func IsNotFound(err error) bool { return httpclient.IsNotFound(err) }

func IsRateLimit(err error) bool { return httpclient.IsRateLimit(err) }

// IsServerError checks if the error is a 5xx server error.
func IsServerError(err error) bool { return httpclient.IsServerError(err) }

func IsRetryable(err error) bool { return httpclient.IsRetryable(err) }

func IsTimeout(err error) bool { return httpclient.IsTimeout(err) }

// IsNoInstance reports that the registry had nothing to call.
func IsNoInstance(err error) bool { return httpclient.IsNoInstance(err) }
