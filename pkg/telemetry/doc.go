// Package telemetry provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing shared by the resolver, executor, and CLI.
package telemetry
