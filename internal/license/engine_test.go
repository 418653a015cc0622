package license

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "licenses.json"))
	require.NoError(t, err)
	return NewEngine(store, "http://localhost:8080", slog.Default())
}

// flakyStore wraps an in-memory table and fails Persist on demand so tests
// can exercise the rollback paths.
type flakyStore struct {
	licenses    map[string]License
	failPersist bool
	persists    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{licenses: make(map[string]License)}
}

func (s *flakyStore) Get(key string) (License, bool) { lic, ok := s.licenses[key]; return lic, ok }
func (s *flakyStore) Put(key string, lic License)    { s.licenses[key] = lic }
func (s *flakyStore) Delete(key string)              { delete(s.licenses, key) }

func (s *flakyStore) All() map[string]License {
	out := make(map[string]License, len(s.licenses))
	for k, v := range s.licenses {
		out[k] = v
	}
	return out
}

func (s *flakyStore) Persist() error {
	s.persists++
	if s.failPersist {
		return errors.New("disk full")
	}
	return nil
}

func TestEngine_CreateUnbound(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "")
	require.NoError(t, err)

	assert.True(t, IsValidKeyFormat(lic.Key))
	assert.Equal(t, UnboundStore, lic.Store)
	assert.False(t, lic.Bound())
	assert.True(t, lic.Valid)
	assert.False(t, lic.CreatedAt.IsZero())
}

func TestEngine_CreateWithStore(t *testing.T) {
	engine := newTestEngine(t)

	lic, err := engine.Create(context.Background(), "Jane Smith", "jane@example.com", "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shop-a.myshopify.com", lic.Store)
	assert.True(t, lic.Bound())
}

// TestEngine_FirstUseBindingLifecycle runs the full concrete scenario:
// create unbound, bind on first validation, reject a second store, revoke,
// then observe revocation winning over the bound store.
func TestEngine_FirstUseBindingLifecycle(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "")
	require.NoError(t, err)
	key := lic.Key

	// First validation with a store binds it permanently.
	res, err := engine.Validate(ctx, key, "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionFirstUse, res.Decision)
	assert.True(t, res.FirstTime)
	assert.Equal(t, "shop-a.myshopify.com", res.License.Store)
	assert.Contains(t, res.AssetURL, "theme.css")
	assert.Contains(t, res.AssetURL, "shop-a.myshopify.com")

	// A different store is rejected and the bound store is reported.
	res, err = engine.Validate(ctx, key, "shop-b.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionStoreMismatch, res.Decision)
	assert.Equal(t, "shop-a.myshopify.com", res.License.Store)

	// The matching store keeps validating.
	res, err = engine.Validate(ctx, key, "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionValid, res.Decision)
	assert.NotEmpty(t, res.AssetURL)

	// Revocation wins regardless of store.
	_, err = engine.SetValidity(ctx, key, false)
	require.NoError(t, err)

	res, err = engine.Validate(ctx, key, "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionRevoked, res.Decision)
}

func TestEngine_ValidateUnknownKey(t *testing.T) {
	engine := newTestEngine(t)

	for _, store := range []string{"", "shop-a.myshopify.com"} {
		_, err := engine.Validate(context.Background(), "VEL-DEAD-BEEF-DEAD-BEEF", store)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestEngine_ValidateUnboundWithoutStoreStaysUnbound(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "")
	require.NoError(t, err)

	res, err := engine.Validate(ctx, lic.Key, "")
	require.NoError(t, err)
	assert.Equal(t, DecisionFirstUse, res.Decision)
	assert.True(t, res.FirstTime)
	assert.Empty(t, res.AssetURL, "no asset URL without a concrete store")

	// Still unbound: a later validation with a store performs the bind.
	res, err = engine.Validate(ctx, lic.Key, "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionFirstUse, res.Decision)
	assert.Equal(t, "shop-a.myshopify.com", res.License.Store)
}

func TestEngine_ValidateBoundWithoutStore(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "shop-a.myshopify.com")
	require.NoError(t, err)

	res, err := engine.Validate(ctx, lic.Key, "")
	require.NoError(t, err)
	assert.Equal(t, DecisionStoreRequired, res.Decision)
}

func TestEngine_SetValidityIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "shop-a.myshopify.com")
	require.NoError(t, err)

	// Revoking twice is a no-op success.
	_, err = engine.SetValidity(ctx, created.Key, false)
	require.NoError(t, err)
	again, err := engine.SetValidity(ctx, created.Key, false)
	require.NoError(t, err)
	assert.False(t, again.Valid)

	// Reactivating restores a state identical aside from Valid.
	restored, err := engine.SetValidity(ctx, created.Key, true)
	require.NoError(t, err)
	assert.True(t, restored.Valid)
	assert.Equal(t, created.Store, restored.Store)
	assert.Equal(t, created.CreatedAt, restored.CreatedAt)
	assert.Equal(t, created.Customer, restored.Customer)
	assert.Equal(t, created.Email, restored.Email)
}

func TestEngine_SetValidityUnknownKey(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.SetValidity(context.Background(), "VEL-DEAD-BEEF-DEAD-BEEF", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_CreateRollsBackOnPersistFailure(t *testing.T) {
	store := newFlakyStore()
	store.failPersist = true
	engine := NewEngine(store, "http://localhost:8080", slog.Default())

	_, err := engine.Create(context.Background(), "Jane Smith", "jane@example.com", "")
	require.Error(t, err)
	assert.Empty(t, store.All(), "failed creation must not leave a record in memory")
}

func TestEngine_BindRollsBackOnPersistFailure(t *testing.T) {
	store := newFlakyStore()
	engine := NewEngine(store, "http://localhost:8080", slog.Default())
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "")
	require.NoError(t, err)

	store.failPersist = true
	_, err = engine.Validate(ctx, lic.Key, "shop-a.myshopify.com")
	require.Error(t, err)

	// The bind did not commit; the license is still claimable.
	got, ok := store.Get(lic.Key)
	require.True(t, ok)
	assert.Equal(t, UnboundStore, got.Store)
}

func TestEngine_SetValidityRollsBackOnPersistFailure(t *testing.T) {
	store := newFlakyStore()
	engine := NewEngine(store, "http://localhost:8080", slog.Default())
	ctx := context.Background()

	lic, err := engine.Create(ctx, "Jane Smith", "jane@example.com", "shop-a.myshopify.com")
	require.NoError(t, err)

	store.failPersist = true
	_, err = engine.SetValidity(ctx, lic.Key, false)
	require.Error(t, err)

	got, ok := store.Get(lic.Key)
	require.True(t, ok)
	assert.True(t, got.Valid, "failed revoke must not stick in memory")
}

func TestEngine_ListAndCount(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Create(ctx, "Customer", "c@example.com", "")
		require.NoError(t, err)
	}

	assert.Len(t, engine.List(ctx), 3)
	assert.Equal(t, 3, engine.Count(ctx))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "VEL-****BEEF", MaskKey("VEL-DEAD-BEEF-DEAD-BEEF"))
	assert.Equal(t, "****", MaskKey("short"))
}
