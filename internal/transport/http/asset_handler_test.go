package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/velvetthemes/licensing/internal/assets"
	"github.com/velvetthemes/licensing/internal/license"
)

func getThemeCSS(t *testing.T, gate AssetGate, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewAssetHandler(gate, testLogger())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ThemeCSS(rec, req)
	return rec
}

func TestThemeCSS_Granted(t *testing.T) {
	const css = ".velvet-pro { color: rebeccapurple; }"

	gate := new(MockAssetGate)
	gate.On("Authorize", mock.Anything, testKey, "velvet-demo.myshopify.com").
		Return(license.DecisionValid, nil)
	gate.On("Open", mock.Anything).
		Return(io.NopCloser(strings.NewReader(css)), nil)

	rec := getThemeCSS(t, gate, "/theme.css?key="+testKey+"&store=velvet-demo.myshopify.com")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, assets.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, css, rec.Body.String())
}

func TestThemeCSS_UnknownKey(t *testing.T) {
	gate := new(MockAssetGate)
	gate.On("Authorize", mock.Anything, testKey, "").
		Return(license.Decision(0), license.ErrNotFound)

	rec := getThemeCSS(t, gate, "/theme.css?key="+testKey)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	gate.AssertNotCalled(t, "Open")
}

func TestThemeCSS_Revoked(t *testing.T) {
	gate := new(MockAssetGate)
	gate.On("Authorize", mock.Anything, testKey, "velvet-demo.myshopify.com").
		Return(license.DecisionRevoked, nil)

	rec := getThemeCSS(t, gate, "/theme.css?key="+testKey+"&store=velvet-demo.myshopify.com")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	gate.AssertNotCalled(t, "Open")
}

func TestThemeCSS_StoreMismatch(t *testing.T) {
	gate := new(MockAssetGate)
	gate.On("Authorize", mock.Anything, testKey, "other.myshopify.com").
		Return(license.DecisionStoreMismatch, nil)

	rec := getThemeCSS(t, gate, "/theme.css?key="+testKey+"&store=other.myshopify.com")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestThemeCSS_AssetFileMissing(t *testing.T) {
	gate := new(MockAssetGate)
	gate.On("Authorize", mock.Anything, testKey, "velvet-demo.myshopify.com").
		Return(license.DecisionValid, nil)
	gate.On("Open", mock.Anything).Return(nil, assets.ErrAssetMissing)

	rec := getThemeCSS(t, gate, "/theme.css?key="+testKey+"&store=velvet-demo.myshopify.com")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
