// Package api hosts the HTTP server, middleware, and REST handlers that put
// the inspection pipeline behind a network port. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/inspect?url=... to inspect a site (refresh and include_html
//     are optional booleans).
//   - GET, DELETE /v1/cache and DELETE /v1/cache/entry?url=... for cache
//     maintenance.
package api
