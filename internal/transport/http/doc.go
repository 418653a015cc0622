// Package http contains the HTTP transport layer: the order-fulfillment
// webhook, the public validate and theme asset endpoints, the
// session-gated admin surface, and the health endpoint.
//
// Handlers depend on narrow service interfaces rather than concrete types
// so tests can substitute mocks. Domain outcomes (not found, revoked,
// mismatch, store required) are mapped to RFC 7807 problem responses here;
// the license engine itself never speaks HTTP.
package http
