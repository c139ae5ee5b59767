package procedure

import (
	"net/http"
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
	api.POST("/patients/:id/procedures", h.Record, auth.RequireRole(auth.RoleDentist))
	api.GET("/patients/:id/procedures", h.List, auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist))
}

type recordRequest struct {
	PracticeID  *int64     `json:"practice_id" validate:"omitempty,gt=0"`
	Description string     `json:"description" validate:"required_without=PracticeID,max=255"`
	Code        *string    `json:"code" validate:"omitempty,max=32"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	PerformedAt *time.Time `json:"performed_at"`
	Notes       *string    `json:"notes"`
}

func (h *Handler) Record(c echo.Context) error {
	patientID, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req recordRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}

	p := &Procedure{
		PatientID:   patientID,
		PracticeID:  req.PracticeID,
		Description: req.Description,
		Code:        req.Code,
		Amount:      req.Amount,
		Notes:       req.Notes,
	}
	if req.PerformedAt != nil {
		p.PerformedAt = req.PerformedAt.UTC()
	}
	if err := h.svc.Record(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Procedure{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}
