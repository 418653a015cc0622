package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/velvetthemes/licensing/internal/assets"
	apierrors "github.com/velvetthemes/licensing/internal/errors"
	"github.com/velvetthemes/licensing/internal/license"
	"github.com/velvetthemes/licensing/internal/middleware"
)

// AssetHandler serves the protected theme CSS.
type AssetHandler struct {
	gate   AssetGate
	logger *slog.Logger
}

// NewAssetHandler creates an asset handler over the gate.
func NewAssetHandler(gate AssetGate, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		gate:   gate,
		logger: logger.With(slog.String("handler", "asset")),
	}
}

// ThemeCSS handles GET /theme.css?key=...&store=...
//
// Authorization re-applies the same policy as /validate: unknown key 404,
// revoked 403, bound-store mismatch 403; unbound or matching store streams
// the CSS. A granted request can still 404 when the asset file is absent
// on the host.
func (h *AssetHandler) ThemeCSS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	key := r.URL.Query().Get("key")
	callerStore := r.URL.Query().Get("store")

	decision, err := h.gate.Authorize(ctx, key, callerStore)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			render.Render(w, r, apierrors.LicenseNotFound(r.URL.Path).
				WithExtension("trace_id", reqID))
			return
		}
		render.Render(w, r, apierrors.Internal(r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	if !decision.Granted() {
		switch decision {
		case license.DecisionRevoked:
			render.Render(w, r, apierrors.LicenseRevoked(r.URL.Path).
				WithExtension("trace_id", reqID))
		default:
			// Store required and mismatch collapse to the same denial at
			// the asset boundary: this license does not cover that caller.
			render.Render(w, r, apierrors.NewProblemDetails(
				http.StatusForbidden, apierrors.TypeLicenseStoreMismatch,
				"License Invalid For This Store",
				"This license does not authorize the requesting store.", r.URL.Path).
				WithExtension("trace_id", reqID))
		}
		return
	}

	rc, err := h.gate.Open(ctx)
	if err != nil {
		if errors.Is(err, assets.ErrAssetMissing) {
			render.Render(w, r, apierrors.AssetNotFound(r.URL.Path).
				WithExtension("trace_id", reqID))
			return
		}
		h.logger.ErrorContext(ctx, "asset open failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.Internal(r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", assets.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "asset stream interrupted", slog.String("error", err.Error()))
	}
}
