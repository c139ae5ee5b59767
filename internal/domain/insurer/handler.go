package insurer

import (
	"net/http"

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
	staff := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist))
	staff.GET("/insurers", h.Search)
	staff.GET("/insurers/:id", h.Get)
	api.POST("/insurers", h.Create, auth.RequireRole(auth.RoleAdmin))
}

type createRequest struct {
	Name string  `json:"name" validate:"required,max=120"`
	Code *string `json:"code" validate:"omitempty,max=32"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	i := &Insurer{Name: req.Name, Code: req.Code}
	if err := h.svc.Create(c.Request().Context(), i); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, i)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	i, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, i)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Insurer{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}
