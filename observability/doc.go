// Package observability records queue lifecycle metrics through
// OpenTelemetry. Metrics attach to the engine's event bus as a
// listener; with no MeterProvider configured the instruments are
// noops and the listener is a pass-through.
package observability
