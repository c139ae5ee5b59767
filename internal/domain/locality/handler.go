package locality

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
	staff.GET("/localities", h.Search)
	staff.GET("/localities/:id", h.Get)
	staff.POST("/localities", h.Create)
}

type createRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// Create answers 201 for a new locality and 200 when the name already
// existed.
func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	l, created, err := h.svc.GetOrCreate(c.Request().Context(), req.Name)
	if err != nil {
		return apperr.HTTPError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, l)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Locality{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}
