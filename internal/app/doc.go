// Package app wires the licensing service together and manages its
// lifecycle: configuration, logging, observability, the license store and
// engine, the HTTP router, and graceful shutdown.
//
// Initialization order matters: configuration first, then logging and
// OpenTelemetry, then the license snapshot (a corrupt snapshot aborts
// startup), then services and the router. NewApplication returns all
// wiring errors to the caller; the package never calls os.Exit.
package app
