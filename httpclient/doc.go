// Package httpclient calls services by name through the service registry.
//
// Client is the transport: it builds one HTTP request, sends it and
// classifies the response into a typed *Error. Resilient sits on top: it
// picks an instance, retries with exponential backoff, optionally runs
// every attempt through a circuit breaker, records the outcome back into
// the registry and serves a fallback when one is supplied.
//
//	client, err := httpclient.NewResilient(httpclient.Config{ServiceName: "gateway"}, registry, log,
//	    httpclient.WithCircuitBreakers(breakers))
//
//	res, err := client.Get(ctx, "billing", "/invoices", httpclient.RequestOptions{
//	    Retries:  httpclient.Ptr(2),
//	    Fallback: func(ctx context.Context, err error) (any, error) { return cached, nil },
//	})
//
// Subpackage rest decodes responses into typed values.
package httpclient
