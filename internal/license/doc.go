// Package license implements the license lifecycle for the Velvet theme:
// key generation, the durable license table, and the state machine that
// governs store binding, revocation and validation.
//
// A license starts unbound (Store == UnboundStore). The first successful
// validation that supplies a store domain binds the license to that store
// permanently; there is no rebind operation. Revoke and activate toggle the
// Valid flag and are idempotent. Both the validate endpoint and the theme
// asset gate consult the same Authorize policy function, so the two
// authorization decisions cannot drift apart.
//
// All mutations run under a single engine mutex and are persisted as a
// whole-table JSON snapshot before the operation reports success.
package license
