package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/velvetthemes/licensing/internal/errors"
	"github.com/velvetthemes/licensing/internal/license"
	"github.com/velvetthemes/licensing/internal/middleware"
)

// LicenseHandler serves the public validate endpoint.
type LicenseHandler struct {
	service LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(service LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ValidateResponse is the success payload of GET /validate.
type ValidateResponse struct {
	Valid     bool             `json:"valid"`
	FirstTime bool             `json:"firstTime,omitempty"`
	Message   string           `json:"message"`
	CssURL    string           `json:"cssUrl,omitempty"`
	License   *license.License `json:"license,omitempty"`
	TraceID   string           `json:"trace_id,omitempty"`
}

// Validate handles GET /validate?key=...&store=...
//
// Status mapping is fixed: 200 valid/first-time, 404 unknown key,
// 403 revoked or store mismatch, 400 missing key or store required.
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("license-handler")
	start := time.Now()

	key := r.URL.Query().Get("key")
	callerStore := r.URL.Query().Get("store")

	ctx, span := tracer.Start(ctx, "license_handler.validate",
		trace.WithAttributes(
			attribute.String("http.route", "/validate"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	if key == "" {
		render.Render(w, r, apierrors.Validation("License key is required.", r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}
	if !license.IsValidKeyFormat(key) {
		span.SetAttributes(attribute.String("license.result", "invalid_format"))
		render.Render(w, r, apierrors.Validation(
			"Invalid license key format. Expected: VEL-XXXX-XXXX-XXXX-XXXX.", r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	res, err := h.service.Validate(ctx, key, callerStore)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, license.ErrNotFound) {
			span.SetAttributes(attribute.String("license.result", "not_found"))
			render.Render(w, r, apierrors.LicenseNotFound(r.URL.Path).
				WithExtension("trace_id", reqID))
			return
		}
		h.logger.ErrorContext(ctx, "license validation failed",
			slog.String("key", license.MaskKey(key)),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.Persistence(r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	span.SetAttributes(
		attribute.String("license.result", res.Decision.String()),
		attribute.Bool("license.first_time", res.FirstTime),
		attribute.Int64("request.latency_ms", time.Since(start).Milliseconds()),
	)

	switch res.Decision {
	case license.DecisionRevoked:
		render.Render(w, r, apierrors.LicenseRevoked(r.URL.Path).
			WithExtension("trace_id", reqID))
	case license.DecisionStoreRequired:
		render.Render(w, r, apierrors.StoreRequired(r.URL.Path).
			WithExtension("trace_id", reqID))
	case license.DecisionStoreMismatch:
		render.Render(w, r, apierrors.StoreMismatch(res.License.Store, r.URL.Path).
			WithExtension("trace_id", reqID))
	case license.DecisionFirstUse:
		lic := res.License
		render.JSON(w, r, ValidateResponse{
			Valid:     true,
			FirstTime: true,
			Message:   "License activated for the first time and store locked.",
			CssURL:    res.AssetURL,
			License:   &lic,
			TraceID:   reqID,
		})
	default:
		lic := res.License
		render.JSON(w, r, ValidateResponse{
			Valid:   true,
			Message: "License verified successfully.",
			CssURL:  res.AssetURL,
			License: &lic,
			TraceID: reqID,
		})
	}
}
