// Package errors provides the RFC 7807 problem-details error surface shared
// by every HTTP handler in the licensing server.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Problem type URIs. The license-specific types map the expected domain
// outcomes (not found, revoked, mismatch, store required) that callers are
// meant to branch on.
const (
	TypeValidation    = "/errors/validation"
	TypeUnauthorized  = "/errors/unauthorized"
	TypeInternal      = "/errors/internal"
	TypeRateLimit     = "/errors/rate-limit"
	TypeTimeout       = "/errors/timeout"
	TypeNotFound      = "/errors/not-found"

	TypeLicenseNotFound      = "/errors/license/not-found"
	TypeLicenseRevoked       = "/errors/license/revoked"
	TypeLicenseStoreMismatch = "/errors/license/store-mismatch"
	TypeLicenseStoreRequired = "/errors/license/store-required"
	TypeAssetNotFound        = "/errors/asset/not-found"
	TypePersistenceFailure   = "/errors/persistence"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions into the problem object.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, 5+len(pd.Extensions))
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// WithExtension adds an extension member and returns the problem for
// chaining.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{})
	}
	pd.Extensions[key] = value
	return pd
}

// NewProblemDetails creates an RFC 7807 compliant error.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// Convenience constructors for the recurring cases.

// LicenseNotFound reports an unknown license key.
func LicenseNotFound(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusNotFound, TypeLicenseNotFound,
		"License Not Found", "The specified license key was not found.", instance)
}

// LicenseRevoked reports a revoked license.
func LicenseRevoked(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusForbidden, TypeLicenseRevoked,
		"License Revoked", "This license has been revoked.", instance)
}

// StoreMismatch reports a license bound to a different store. The bound
// store is named for diagnostics; the caller already claims to operate it.
func StoreMismatch(boundStore, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusForbidden, TypeLicenseStoreMismatch,
		"Store Mismatch", "License already activated by another store ("+boundStore+").", instance).
		WithExtension("bound_store", boundStore)
}

// StoreRequired reports a missing store parameter on a bound license.
func StoreRequired(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusBadRequest, TypeLicenseStoreRequired,
		"Store Domain Required", "Store domain is required after activation.", instance)
}

// Validation reports a malformed request.
func Validation(detail, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusBadRequest, TypeValidation,
		"Invalid Request", detail, instance)
}

// Unauthorized reports a missing or invalid admin session.
func Unauthorized(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusUnauthorized, TypeUnauthorized,
		"Authentication Required", "A valid admin session is required.", instance)
}

// Internal reports an unexpected server-side failure without leaking the
// underlying error to the caller.
func Internal(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred. Please try again later.", instance)
}

// Persistence reports a failed durable write. The mutation did not commit.
func Persistence(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusInternalServerError, TypePersistenceFailure,
		"Persistence Failure", "The change could not be saved and was not applied.", instance)
}

// AssetNotFound reports a missing protected asset on the serving host.
func AssetNotFound(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusNotFound, TypeAssetNotFound,
		"Asset Not Found", "The protected theme asset is not available.", instance)
}
