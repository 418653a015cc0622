package license

// Decision is the outcome of the shared authorization policy. Both the
// validate endpoint and the theme asset gate branch on the same Decision,
// which is what keeps the two authorization surfaces consistent.
type Decision int

const (
	// DecisionFirstUse: license is valid and not yet bound to a store.
	DecisionFirstUse Decision = iota
	// DecisionValid: license is valid and the caller's store matches.
	DecisionValid
	// DecisionRevoked: license exists but has been revoked.
	DecisionRevoked
	// DecisionStoreRequired: license is bound but the caller named no store.
	DecisionStoreRequired
	// DecisionStoreMismatch: license is bound to a different store.
	DecisionStoreMismatch
)

// String returns the decision name for logs and metrics.
func (d Decision) String() string {
	switch d {
	case DecisionFirstUse:
		return "first_use"
	case DecisionValid:
		return "valid"
	case DecisionRevoked:
		return "revoked"
	case DecisionStoreRequired:
		return "store_required"
	case DecisionStoreMismatch:
		return "store_mismatch"
	default:
		return "unknown"
	}
}

// Granted reports whether the decision authorizes access to the protected
// asset. Only the valid outcomes grant; every other decision is a denial.
func (d Decision) Granted() bool {
	return d == DecisionFirstUse || d == DecisionValid
}

// Authorize applies the binding and validity rules to an existing license.
// Callers handle the key-not-found case before consulting the policy.
//
// The evaluation order is fixed: revocation always wins, then the unbound
// case, then store matching. Authorize is pure; the engine performs the
// first-use bind as a separate step when the caller supplied a store.
func Authorize(lic License, callerStore string) Decision {
	if !lic.Valid {
		return DecisionRevoked
	}
	if !lic.Bound() {
		return DecisionFirstUse
	}
	if callerStore == "" {
		return DecisionStoreRequired
	}
	if callerStore != lic.Store {
		return DecisionStoreMismatch
	}
	return DecisionValid
}
