package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-cargo/internal/common"
	"github.com/noah-isme/backend-cargo/internal/repo"
)

// Handler exposes carton catalog endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

// List handles GET /api/v1/cartons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", ErrNotConfigured.Error(), nil)
		return
	}
	var (
		rows any
		err  error
	)
	if r.URL.Query().Get("includeInactive") == "true" {
		rows, err = h.service.List(r.Context())
	} else {
		rows, err = h.service.ActiveCartons(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Create handles POST /api/v1/cartons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", ErrNotConfigured.Error(), nil)
		return
	}
	var in CartonInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// SetDefault handles PUT /api/v1/cartons/{id}/default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", ErrNotConfigured.Error(), nil)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.SetDefault(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id, "status": "default"}})
}

// Deactivate handles DELETE /api/v1/cartons/{id}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", ErrNotConfigured.Error(), nil)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id, "status": "inactive"}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
	case errors.Is(err, repo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "carton not found", nil)
	case errors.Is(err, repo.ErrTenantMissing), errors.Is(err, repo.ErrTenantInvalid):
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
	case errors.Is(err, repo.ErrDefaultCarton):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
