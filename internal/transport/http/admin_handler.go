package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/xuri/excelize/v2"

	"github.com/velvetthemes/licensing/internal/config"
	apierrors "github.com/velvetthemes/licensing/internal/errors"
	"github.com/velvetthemes/licensing/internal/license"
	"github.com/velvetthemes/licensing/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// AdminHandler serves the admin dashboard and the admin API: listing,
// revoking, activating and exporting licenses. Everything except the login
// form sits behind the session middleware.
type AdminHandler struct {
	service   LicenseService
	sessions  *middleware.SessionManager
	cfg       *config.Config
	templates *template.Template
	logger    *slog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(service LicenseService, sessions *middleware.SessionManager, cfg *config.Config, logger *slog.Logger) (*AdminHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse admin templates: %w", err)
	}
	return &AdminHandler{
		service:   service,
		sessions:  sessions,
		cfg:       cfg,
		templates: tmpl,
		logger:    logger.With(slog.String("handler", "admin")),
	}, nil
}

// ActionResponse is the payload of revoke/activate calls.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// LoginPage handles GET /admin/login.
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "")
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, "Invalid form submission.")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if !h.cfg.AdminEnabled() {
		h.logger.WarnContext(ctx, "admin login attempted but admin is not configured")
		h.renderLogin(w, r, "Admin access is not configured on this server.")
		return
	}
	if username != h.cfg.Admin.Username || !h.cfg.CheckAdminPassword(password) {
		h.logger.WarnContext(ctx, "admin login rejected",
			slog.String("username", username),
			slog.String("remote_addr", r.RemoteAddr))
		h.renderLogin(w, r, "Invalid username or password.")
		return
	}

	id := h.sessions.Create()
	h.sessions.SetCookie(w, id)
	h.logger.InfoContext(ctx, "admin login", slog.String("username", username))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout handles POST /admin/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(h.sessions.FromRequest(r))
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// dashboardRow is a License with presentation fields for the template.
type dashboardRow struct {
	license.License
	Created string
	Bound   bool
}

// Dashboard handles GET /admin: the license table.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	licenses := h.service.List(r.Context())

	rows := make([]dashboardRow, 0, len(licenses))
	for _, lic := range licenses {
		rows = append(rows, dashboardRow{
			License: lic,
			Created: lic.CreatedAt.Local().Format("2006-01-02 15:04"),
			Bound:   lic.Bound(),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	data := map[string]interface{}{
		"Rows":  rows,
		"Count": len(rows),
	}
	if err := h.templates.ExecuteTemplate(w, "admin.html", data); err != nil {
		h.logger.ErrorContext(r.Context(), "dashboard render failed",
			slog.String("error", err.Error()))
	}
}

// ListLicenses handles GET /api/admin/licenses. The shape matches the
// persisted table: a map keyed by license key.
func (h *AdminHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.List(r.Context()))
}

// Revoke handles POST /api/admin/licenses/{key}/revoke. Idempotent.
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.setValidity(w, r, false, "License revoked.")
}

// Activate handles POST /api/admin/licenses/{key}/activate. Idempotent.
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setValidity(w, r, true, "License activated.")
}

func (h *AdminHandler) setValidity(w http.ResponseWriter, r *http.Request, valid bool, message string) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	key := chi.URLParam(r, "key")

	_, err := h.service.SetValidity(ctx, key, valid)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			render.Render(w, r, apierrors.LicenseNotFound(r.URL.Path).
				WithExtension("trace_id", reqID))
			return
		}
		h.logger.ErrorContext(ctx, "validity change failed",
			slog.String("key", license.MaskKey(key)),
			slog.Bool("valid", valid),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.Persistence(r.URL.Path).
			WithExtension("trace_id", reqID))
		return
	}

	render.JSON(w, r, ActionResponse{Success: true, Message: message, TraceID: reqID})
}

// Export handles GET /api/admin/licenses/export: the license table as an
// xlsx workbook for support and bookkeeping.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	licenses := h.service.List(ctx)

	keys := make([]string, 0, len(licenses))
	for key := range licenses {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Licenses"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"License Key", "Customer", "Email", "Store", "Status", "Created At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, key := range keys {
		lic := licenses[key]
		status := "active"
		if !lic.Valid {
			status = "revoked"
		}
		values := []interface{}{lic.Key, lic.Customer, lic.Email, lic.Store, status,
			lic.CreatedAt.Format(time.RFC3339)}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="licenses-%s.xlsx"`, time.Now().Format("2006-01-02")))
	if err := f.Write(w); err != nil {
		h.logger.ErrorContext(ctx, "license export failed", slog.String("error", err.Error()))
	}
}

func (h *AdminHandler) renderLogin(w http.ResponseWriter, r *http.Request, errMsg string) {
	if errMsg != "" {
		w.WriteHeader(http.StatusUnauthorized)
	}
	data := map[string]interface{}{"Error": errMsg}
	if err := h.templates.ExecuteTemplate(w, "login.html", data); err != nil {
		h.logger.ErrorContext(r.Context(), "login render failed",
			slog.String("error", err.Error()))
	}
}
