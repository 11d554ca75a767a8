// Package instrumentation records OpenTelemetry metrics for the login, callback and refresh
// flows, the outbound Discord API calls and the HTTP layer.
//
// When enabled, metrics are collected by an SDK meter provider whose reader is the
// Prometheus exporter, and Handler serves them for scraping. When disabled, a no-op meter
// provider is used and every Record method is free.
//
// All Record methods are safe to call on a nil *Metrics.
package instrumentation
