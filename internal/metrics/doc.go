// Package metrics declares the Prometheus collectors exported by
// `gifconv serve` on /metrics.
//
// Collectors are registered with the default registry through promauto.
// JobObserver feeds job and state events from the orchestrator; the HTTP
// middleware records request counts and latencies for the API.
package metrics
