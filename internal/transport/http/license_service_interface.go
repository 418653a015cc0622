package http

import (
	"context"
	"io"

	"github.com/velvetthemes/licensing/internal/license"
)

// LicenseService is the slice of the lifecycle engine the handlers use.
// *license.Engine implements it.
type LicenseService interface {
	Create(ctx context.Context, customer, email, storeDomain string) (license.License, error)
	Validate(ctx context.Context, key, callerStore string) (license.ValidationResult, error)
	SetValidity(ctx context.Context, key string, valid bool) (license.License, error)
	List(ctx context.Context) map[string]license.License
	Count(ctx context.Context) int
}

// AssetGate authorizes and opens the protected theme asset. *assets.Gate
// implements it.
type AssetGate interface {
	Authorize(ctx context.Context, key, callerStore string) (license.Decision, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}
