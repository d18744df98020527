// Package api serves the local HTTP interface started by `gifconv serve` and
// defines its wire-format types.
//
// # Endpoints
//
//	GET  /api/status     conversion state, transcoder and dependency status
//	POST /api/probe      queue a probe; 202 with the job ID
//	POST /api/convert    queue a conversion; 202, 400 (validation), 409 (busy)
//	                     or 503 (transcoder unavailable)
//	GET  /api/jobs       recent jobs, from history when enabled
//	GET  /api/jobs/{id}  a single job
//	GET  /metrics        Prometheus metrics
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Job kinds, statuses and failure kinds are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Handlers never block on a subprocess: work is handed to the orchestrator
// and clients poll /api/jobs/{id}.
package api
