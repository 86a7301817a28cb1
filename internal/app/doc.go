// Package app wires configuration, logging, telemetry, the dataset registry
// and the run manager into one Application.
//
// Startup order:
//
//	config.Load -> paths -> logger -> OpenTelemetry -> registry -> manager
//
// The Postgres sink is enabled when database.url is set and the status
// server when telemetry.metrics_addr is set.
package app
