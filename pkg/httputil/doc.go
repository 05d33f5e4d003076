// Package httputil builds the HTTP clients used to talk to the marketplace.
//
// # Overview
//
// A client is derived per call from [Options], which callers assemble from
// configuration and the settings store right before each request:
//
//	opts, err := httputil.LoadOptions(ctx, store, cfg.ValidateSSL, cfg.CABundle)
//	client, err := httputil.NewClient(opts)
//
// Nothing is cached between calls, so a proxy change made by an operator
// applies to the next request.
//
// # TLS
//
// When ValidateSSL is false, certificate and host name verification are
// both disabled. There is no mode that checks one without the other. A
// CA bundle is only honoured while validation is on.
//
// # Redirects
//
// Redirects are followed for http and https targets only, up to
// [MaxRedirects] hops.
//
// # Proxy
//
// The proxy from [settings.Proxy] is applied only when it is enabled. Hosts
// in its NoProxy list (comma-separated names, domain suffixes, or CIDRs)
// are contacted directly.
//
// # Hooks
//
// Every request is reported to [observability.HTTP] hooks.
package httputil
