// Package api hosts the HTTP server, middleware, and read-only REST handlers
// over crawled sites. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/sites, /v1/sites/{origin} and /v1/sites/{origin}/documents for
//     browsing the document store.
//   - GET /v1/analyses for the latest analysis per site when Postgres is
//     configured.
package api
