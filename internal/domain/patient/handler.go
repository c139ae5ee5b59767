package patient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

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
	staff.POST("/patients", h.Create)
	staff.GET("/patients", h.Search)
	staff.GET("/patients/:id", h.Get)
	staff.PUT("/patients/:id", h.Update)
}

// patientRequest accepts either locality_id or locality_name; a name wins
// and is created as a locality on first use.
type patientRequest struct {
	FirstName       string  `json:"first_name" validate:"required,max=120"`
	LastName        string  `json:"last_name" validate:"required,max=120"`
	DocumentNumber  string  `json:"document_number" validate:"required,max=16"`
	BirthDate       string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Phone           *string `json:"phone" validate:"omitempty,max=32"`
	Address         *string `json:"address" validate:"omitempty,max=255"`
	LocalityID      *int64  `json:"locality_id" validate:"omitempty,gt=0"`
	LocalityName    string  `json:"locality_name" validate:"max=120"`
	InsurerID       *int64  `json:"insurer_id" validate:"omitempty,gt=0"`
	AffiliateNumber *string `json:"affiliate_number" validate:"omitempty,max=32"`
}

func (r *patientRequest) toPatient() *Patient {
	p := &Patient{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		DocumentNumber:  r.DocumentNumber,
		Phone:           r.Phone,
		Address:         r.Address,
		LocalityID:      r.LocalityID,
		InsurerID:       r.InsurerID,
		AffiliateNumber: r.AffiliateNumber,
	}
	if r.BirthDate != "" {
		if d, err := time.Parse("2006-01-02", r.BirthDate); err == nil {
			p.BirthDate = &d
		}
	}
	return p
}

func (h *Handler) patientFrom(c echo.Context, req *patientRequest) (*Patient, error) {
	p := req.toPatient()
	if strings.TrimSpace(req.LocalityName) != "" {
		id, err := h.svc.ResolveLocality(c.Request().Context(), req.LocalityName)
		if err != nil {
			return nil, err
		}
		p.LocalityID = &id
	}
	return p, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req patientRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	p, err := h.patientFrom(c, &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if err := h.svc.Create(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := ParseID(c.Param("id"))
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
	id, err := ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req patientRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}
	p, err := h.patientFrom(c, &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

// ParseID parses a positive numeric path id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id: " + raw)
	}
	return id, nil
}
