// Package rest decodes resilient client responses into typed values.
//
//	api := rest.New(resilientClient)
//
//	inv, err := rest.Get[Invoice](ctx, api, "billing", "/invoices/42")
//
//	created, err := rest.Post[Invoice](ctx, api, "billing", "/invoices", draft,
//	    rest.WithRetries(1), rest.WithFallback(Invoice{}))
package rest
