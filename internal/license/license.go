package license

import "time"

// UnboundStore is the sentinel store value for a license that no storefront
// has claimed yet. The value matches the persisted layout of earlier
// deployments, so existing license files load unchanged.
const UnboundStore = "unknown-store"

// License is a single license record. Key is immutable once created; Store
// transitions at most once from UnboundStore to a concrete domain; Valid is
// toggled only by explicit revoke/activate actions.
type License struct {
	Key       string    `json:"key"`
	Customer  string    `json:"customer"`
	Email     string    `json:"email"`
	Store     string    `json:"store"`
	Valid     bool      `json:"valid"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bound reports whether the license has been claimed by a storefront.
func (l License) Bound() bool {
	return l.Store != UnboundStore
}
