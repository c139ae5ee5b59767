package odontogram

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nzlopez07/Florens/internal/domain/patient"
	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/auth"
	"github.com/nzlopez07/Florens/internal/platform/validate"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	chart := api.Group("/patients/:id/odontogram", auth.RequireRole(auth.RoleDentist))
	chart.GET("", h.GetCurrent)
	chart.GET("/versions/:versionId", h.GetVersion)
	chart.POST("/versions", h.CreateVersion)
}

type faceChangeRequest struct {
	Tooth    string  `json:"tooth" validate:"max=8"`
	Face     string  `json:"face" validate:"max=32"`
	MarkCode *string `json:"mark_code" validate:"omitempty,max=32"`
	MarkText *string `json:"mark_text" validate:"omitempty,max=255"`
	Comment  *string `json:"comment"`
	Delete   bool    `json:"delete"`
	// Borrar is the flag name older chart clients send.
	Borrar bool `json:"borrar"`
}

type createVersionRequest struct {
	Changes       []faceChangeRequest `json:"changes" validate:"dive"`
	GeneralNote   *string             `json:"general_note"`
	BaseVersionID *int64              `json:"base_version_id" validate:"omitempty,gt=0"`
}

func (r *createVersionRequest) faceChanges() []FaceChange {
	out := make([]FaceChange, 0, len(r.Changes))
	for _, c := range r.Changes {
		if c.Delete || c.Borrar {
			out = append(out, ChangeDelete{Tooth: c.Tooth, Face: c.Face})
			continue
		}
		out = append(out, ChangeUpsert{
			Tooth:    c.Tooth,
			Face:     c.Face,
			MarkCode: c.MarkCode,
			MarkText: c.MarkText,
			Comment:  c.Comment,
		})
	}
	return out
}

func (h *Handler) GetCurrent(c echo.Context) error {
	patientID, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	view, err := h.mgr.GetOrCreateCurrent(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, view.ToMap())
}

func (h *Handler) GetVersion(c echo.Context) error {
	patientID, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	versionID, err := patient.ParseID(c.Param("versionId"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	view, err := h.mgr.GetVersion(c.Request().Context(), patientID, versionID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, view.ToMap())
}

func (h *Handler) CreateVersion(c echo.Context) error {
	patientID, err := patient.ParseID(c.Param("id"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req createVersionRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return apperr.HTTPError(err)
	}

	v, history, err := h.mgr.CreateVersionFrom(c.Request().Context(), patientID, req.faceChanges(), req.GeneralNote, req.BaseVersionID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"odontogram": v.ToMap(),
		"versions":   MapVersions(history),
	})
}
