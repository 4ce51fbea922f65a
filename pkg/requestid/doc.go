// Package requestid correlates log records that belong to one HTTP request.
//
// Middleware takes the client's X-Request-ID when it is short and made of
// letters, digits, '-' and '_', and generates a UUID otherwise. The ID is
// echoed back in the response header, stored in the context and exposed to
// the logger through LoggerExtractor.
package requestid
