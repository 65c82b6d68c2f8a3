// Package http provides the REST surface of the prefetch host.
//
// Routes:
//   - GET /health, GET /stats, GET /metrics
//   - GET /tabs, POST /tabs, GET /tabs/:id, DELETE /tabs/:id
//   - POST /tabs/:id/activate, POST /tabs/:id/navigate
//   - GET /tabs/:id/document: the server-side DOM with prefetch hints
//   - POST /gate/requests: the tab gate's verdict for a request
//   - GET /proxy?url=: gated subresource fetch keyed by X-Tab-Id
//
// Load failures map to status codes: unknown tab 404, gated tab 403,
// non-HTML 415, open breaker 503, other upstream failures 502.
package http
