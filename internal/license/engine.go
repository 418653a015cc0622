package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotFound is returned when a key does not exist in the store. It is an
// expected domain result; transport maps it to 404.
var ErrNotFound = errors.New("license not found")

// ValidationResult is the outcome of a Validate call.
type ValidationResult struct {
	Decision  Decision
	FirstTime bool
	License   License
	// AssetURL points at the gated theme asset. Set only when the caller
	// has a concrete store to fetch it with.
	AssetURL string
}

// Engine is the license lifecycle state machine. Every mutation runs the
// read-decide-mutate-persist sequence under one mutex, so racing first-use
// binds and concurrent admin toggles resolve deterministically against the
// snapshot persistence model.
type Engine struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger

	// assetBaseURL is the externally visible base for asset URLs,
	// e.g. "http://localhost:8080".
	assetBaseURL string

	validations metric.Int64Counter
	creations   metric.Int64Counter
}

// NewEngine creates a lifecycle engine over store.
func NewEngine(store Store, assetBaseURL string, logger *slog.Logger) *Engine {
	meter := otel.Meter("velvet-licensing")
	validations, _ := meter.Int64Counter("license_validations_total",
		metric.WithDescription("License validation decisions by outcome"))
	creations, _ := meter.Int64Counter("license_creations_total",
		metric.WithDescription("Licenses created from order events"))

	return &Engine{
		store:        store,
		logger:       logger.With(slog.String("component", "license_engine")),
		assetBaseURL: assetBaseURL,
		validations:  validations,
		creations:    creations,
	}
}

// Create builds a fresh license for an order event and persists it. The
// store domain may be empty, in which case the license starts unbound and
// is claimed by the first validation that names a store.
func (e *Engine) Create(ctx context.Context, customer, email, storeDomain string) (License, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if storeDomain == "" {
		storeDomain = UnboundStore
	}

	key := GenerateKey()
	// The 16-hex-digit space makes collisions negligible, but the store is
	// the uniqueness authority: never overwrite an existing record.
	for {
		if _, exists := e.store.Get(key); !exists {
			break
		}
		key = GenerateKey()
	}

	lic := License{
		Key:       key,
		Customer:  customer,
		Email:     email,
		Store:     storeDomain,
		Valid:     true,
		CreatedAt: time.Now().UTC(),
	}
	e.store.Put(key, lic)

	if err := e.store.Persist(); err != nil {
		// Roll back so memory and disk stay in agreement.
		e.store.Delete(key)
		e.logger.ErrorContext(ctx, "license creation failed to persist",
			slog.String("key", MaskKey(key)),
			slog.String("error", err.Error()))
		return License{}, fmt.Errorf("persist new license: %w", err)
	}

	e.creations.Add(ctx, 1)
	e.logger.InfoContext(ctx, "license created",
		slog.String("key", MaskKey(key)),
		slog.String("store", storeDomain),
		slog.String("customer", customer))
	return lic, nil
}

// Validate applies the authorization policy to key for callerStore and, on
// the first validation that names a store, binds the license to it. The
// binding is permanent; there is no rebind.
//
// An unbound license validated with no store stays unbound and keeps
// waiting for a future bind. Revoked, store-required and mismatch outcomes
// are reported in the Decision, not as errors.
func (e *Engine) Validate(ctx context.Context, key, callerStore string) (ValidationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lic, ok := e.store.Get(key)
	if !ok {
		e.record(ctx, "not_found")
		return ValidationResult{}, ErrNotFound
	}

	decision := Authorize(lic, callerStore)
	res := ValidationResult{Decision: decision, License: lic}

	switch decision {
	case DecisionFirstUse:
		res.FirstTime = true
		if callerStore != "" {
			lic.Store = callerStore
			e.store.Put(key, lic)
			if err := e.store.Persist(); err != nil {
				// Undo the bind: the mutation did not commit.
				lic.Store = UnboundStore
				e.store.Put(key, lic)
				e.logger.ErrorContext(ctx, "first-use bind failed to persist",
					slog.String("key", MaskKey(key)),
					slog.String("store", callerStore),
					slog.String("error", err.Error()))
				return ValidationResult{}, fmt.Errorf("persist store binding: %w", err)
			}
			res.License = lic
			res.AssetURL = e.assetURL(key, callerStore)
			e.logger.InfoContext(ctx, "license bound to store",
				slog.String("key", MaskKey(key)),
				slog.String("store", callerStore))
		}
	case DecisionValid:
		res.AssetURL = e.assetURL(key, callerStore)
	case DecisionStoreMismatch:
		e.logger.WarnContext(ctx, "license validation rejected for foreign store",
			slog.String("key", MaskKey(key)),
			slog.String("bound_store", lic.Store),
			slog.String("caller_store", callerStore))
	}

	e.record(ctx, decision.String())
	return res, nil
}

// AuthorizeAsset applies the shared policy for the asset gate without any
// side effects: no binding, no persistence. The gate serves an unbound
// license exactly like the validate endpoint would grant it.
func (e *Engine) AuthorizeAsset(ctx context.Context, key, callerStore string) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lic, ok := e.store.Get(key)
	if !ok {
		return 0, ErrNotFound
	}
	return Authorize(lic, callerStore), nil
}

// SetValidity overwrites the Valid flag and persists. Idempotent: revoking
// an already-revoked license succeeds. Store binding and CreatedAt are
// never touched.
func (e *Engine) SetValidity(ctx context.Context, key string, valid bool) (License, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lic, ok := e.store.Get(key)
	if !ok {
		return License{}, ErrNotFound
	}

	previous := lic.Valid
	lic.Valid = valid
	e.store.Put(key, lic)
	if err := e.store.Persist(); err != nil {
		lic.Valid = previous
		e.store.Put(key, lic)
		e.logger.ErrorContext(ctx, "validity change failed to persist",
			slog.String("key", MaskKey(key)),
			slog.Bool("valid", valid),
			slog.String("error", err.Error()))
		return License{}, fmt.Errorf("persist validity change: %w", err)
	}

	e.logger.InfoContext(ctx, "license validity changed",
		slog.String("key", MaskKey(key)),
		slog.Bool("valid", valid),
		slog.Bool("was_valid", previous))
	return lic, nil
}

// Get returns a single license by key.
func (e *Engine) Get(ctx context.Context, key string) (License, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lic, ok := e.store.Get(key)
	if !ok {
		return License{}, ErrNotFound
	}
	return lic, nil
}

// List returns the whole license table for administrative use.
func (e *Engine) List(ctx context.Context) map[string]License {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

// Count returns the number of licenses. Used by the health endpoint.
func (e *Engine) Count(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.store.All())
}

func (e *Engine) assetURL(key, store string) string {
	q := url.Values{}
	q.Set("key", key)
	q.Set("store", store)
	return e.assetBaseURL + "/theme.css?" + q.Encode()
}

func (e *Engine) record(ctx context.Context, outcome string) {
	e.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// MaskKey masks a license key for logging, keeping the prefix and the last
// group for correlation.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
