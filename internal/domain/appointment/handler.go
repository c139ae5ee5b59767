package appointment

import (
	"net/http"
	"strconv"
	"time"

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
	staff := api.Group("/appointments", auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist))
	staff.POST("", h.Create)
	staff.GET("", h.List)
	staff.POST("/sweep", h.Sweep)
	staff.GET("/:id", h.Get)
	staff.GET("/:id/history", h.History)
	staff.POST("/:id/status", h.ChangeStatus)
	staff.DELETE("/:id", h.Delete)
}

type createRequest struct {
	PatientID       int64   `json:"patient_id" validate:"required,gt=0"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string  `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int     `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Detail          *string `json:"detail" validate:"omitempty,max=500"`
}

type statusRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason" validate:"omitempty,max=255"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	date, _ := time.Parse(DateLayout, req.Date)

	a := &Appointment{
		PatientID:       req.PatientID,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Detail:          req.Detail,
	}
	if err := h.svc.Create(c.Request().Context(), a); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a.ToMap())
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a.ToMap())
}

func parseFilter(c echo.Context, pg pagination.Params) (Filter, error) {
	f := Filter{Term: c.QueryParam("q"), Limit: pg.Limit, Offset: pg.Offset}
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return f, apperr.Validation("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if raw := c.QueryParam("from"); raw != "" {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return f, apperr.Validation("from must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if raw := c.QueryParam("status"); raw != "" {
		s, ok := ParseStatus(raw)
		if !ok {
			return f, apperr.Validation("unknown status " + raw)
		}
		f.Status = s
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, apperr.Validation("patient_id must be numeric")
		}
		f.PatientID = id
	}
	return f, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := parseFilter(c, pg)
	if err != nil {
		return apperr.HTTPError(err)
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return apperr.HTTPError(err)
	}
	data := make([]map[string]interface{}, 0, len(items))
	for _, a := range items {
		data = append(data, a.ToMap())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(data, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req statusRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	a, err := h.svc.ChangeStatus(c.Request().Context(), id, Status(req.Status), req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a.ToMap())
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

func (h *Handler) History(c echo.Context) error {
	id, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	changes, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if changes == nil {
		changes = []*StatusChange{}
	}
	return c.JSON(http.StatusOK, changes)
}

func (h *Handler) Sweep(c echo.Context) error {
	n, err := h.svc.SweepOverdue(c.Request().Context(), h.svc.now())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}
