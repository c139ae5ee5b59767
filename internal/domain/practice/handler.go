package practice

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nzlopez07/Florens/internal/domain/patient"
	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/auth"
	"github.com/nzlopez07/Florens/internal/platform/validate"
	"github.com/nzlopez07/Florens/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist)
	api.GET("/practices", h.List, staff)
	api.GET("/practices/:id", h.Get, staff)

	dentist := auth.RequireRole(auth.RoleDentist)
	api.POST("/practices", h.Create, dentist)
	api.PUT("/practices/:id", h.Update, dentist)
	api.DELETE("/practices/:id", h.Delete, dentist)
}

type practiceRequest struct {
	Code         string  `json:"code" validate:"required,max=32"`
	Description  string  `json:"description" validate:"required,max=255"`
	Amount       float64 `json:"amount" validate:"gt=0"`
	ProviderType string  `json:"provider_type" validate:"required,oneof=OBRA_SOCIAL PARTICULAR obra_social particular"`
	InsurerID    *int64  `json:"insurer_id" validate:"omitempty,gt=0"`
}

func (r *practiceRequest) toPractice() *Practice {
	return &Practice{
		Code:         r.Code,
		Description:  r.Description,
		Amount:       r.Amount,
		ProviderType: r.ProviderType,
		InsurerID:    r.InsurerID,
	}
}

func (h *Handler) Create(c echo.Context) error {
	var req practiceRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	p := req.toPractice()
	if err := h.svc.Create(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req practiceRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	p := req.toPractice()
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List filters by q (code or description) and insurer_id. Without insurer_id
// only private practices are listed; all=true lifts that restriction.
func (h *Handler) List(c echo.Context) error {
	f := Filter{Term: c.QueryParam("q")}
	if raw := c.QueryParam("insurer_id"); raw != "" {
		id, err := patient.ParseID(raw)
		if err != nil {
			return apperr.HTTPError(err)
		}
		f.InsurerID = &id
	}
	if raw := c.QueryParam("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			return apperr.HTTPError(apperr.Validation("all must be a boolean"))
		}
		f.All = all
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Practice{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}
