// Package http serves the status endpoints of a running pipeline: liveness,
// Prometheus metrics and the stored run reports.
//
//	GET /healthz      liveness probe
//	GET /metrics      Prometheus exposition
//	GET /runs         recent run reports, newest first (?limit=N)
//	GET /runs/{id}    one run report
//
// Handlers only read; runs are started from the command line.
package http
