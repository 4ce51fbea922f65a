// Package clientip resolves the address of the client behind a request.
//
// Proxy headers are only consulted when the caller names them as trusted;
// otherwise the TCP peer address is used. X-Forwarded-For is read left to
// right and the first valid address wins.
//
//	r.Use(clientip.Middleware("X-Forwarded-For"))
//
//	ip := clientip.FromContext(r.Context())
package clientip
