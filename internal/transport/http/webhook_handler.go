package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/velvetthemes/licensing/internal/errors"
	"github.com/velvetthemes/licensing/internal/middleware"
)

// unknownCustomer substitutes a missing customer name on a paid order. The
// order is never dropped over a malformed payload.
const unknownCustomer = "unknown"

// WebhookHandler consumes Shopify order-fulfillment events and issues one
// license per event.
type WebhookHandler struct {
	service  LicenseService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(service LicenseService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "webhook")),
	}
}

// OrderFulfilledEvent is the slice of the Shopify order payload this
// service reads. Everything else in the webhook body is ignored.
type OrderFulfilledEvent struct {
	Email           string            `json:"email" validate:"omitempty,email"`
	MyshopifyDomain string            `json:"myshopify_domain"`
	Destination     *OrderDestination `json:"destination"`
}

// OrderDestination names the customer on the fulfillment.
type OrderDestination struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateLicenseResponse is the webhook's success payload.
type CreateLicenseResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	LicenseKey string `json:"licenseKey"`
	TraceID    string `json:"trace_id,omitempty"`
}

// OrderFulfilled handles POST /webhook/orders/fulfilled.
//
// A payload missing expected fields still creates a license with defined
// defaults (unknown customer, unbound store); the gap is logged for
// operator follow-up. Only an unparseable body is rejected.
func (h *WebhookHandler) OrderFulfilled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var event OrderFulfilledEvent
	if err := render.DecodeJSON(r.Body, &event); err != nil {
		h.logger.ErrorContext(ctx, "unparseable order event",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.Validation("Order payload is not valid JSON.", r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	customer := unknownCustomer
	if event.Destination != nil {
		name := strings.TrimSpace(event.Destination.FirstName + " " + event.Destination.LastName)
		if name != "" {
			customer = name
		}
	}

	email := event.Email
	if err := h.validate.Struct(&event); err != nil {
		h.logger.WarnContext(ctx, "order event with invalid email, storing blank",
			slog.String("email", event.Email))
		email = ""
	}

	if customer == unknownCustomer || email == "" || event.MyshopifyDomain == "" {
		h.logger.WarnContext(ctx, "order event missing expected fields",
			slog.Bool("has_customer", customer != unknownCustomer),
			slog.Bool("has_email", email != ""),
			slog.Bool("has_store", event.MyshopifyDomain != ""))
	}

	lic, err := h.service.Create(ctx, customer, email, event.MyshopifyDomain)
	if err != nil {
		h.logger.ErrorContext(ctx, "license creation failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.Persistence(r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	render.JSON(w, r, CreateLicenseResponse{
		Success:    true,
		Message:    "License created successfully.",
		LicenseKey: lic.Key,
		TraceID:    reqID,
	})
}
