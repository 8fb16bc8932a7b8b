// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs/discovery and /v1/runs/scrape to trigger a pipeline run.
//   - GET /v1/jobs for the newest catalog entries.
//   - POST /v1/jobs/{job_id}/applications to apply on behalf of the caller.
package api
