package therapy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – clinical staff and reception
	read := api.Group("/therapies", auth.RequireRole(auth.RoleDoctor, auth.RolePractitioner, auth.RoleReception))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/:id/sessions", h.ListSessions)

	// Prescribing endpoints – doctors and admin
	prescribe := api.Group("/therapies", auth.RequireRole(auth.RoleDoctor))
	prescribe.POST("", h.Create)
	prescribe.POST("/:id/cancel", h.Cancel)
	prescribe.POST("/:id/reassign", h.Reassign)

	// Session recording – practitioners and doctors
	record := api.Group("/therapies", auth.RequireRole(auth.RolePractitioner, auth.RoleDoctor))
	record.POST("/:id/sessions", h.RecordSession)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.CreateTherapy(c.Request().Context(), in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	t, err := h.svc.GetTherapy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		PatientID:      c.QueryParam("patient_id"),
		PractitionerID: c.QueryParam("practitioner_id"),
		DoctorID:       c.QueryParam("doctor_id"),
		Status:         c.QueryParam("status"),
	}
	list, err := h.svc.ListTherapies(c.Request().Context(), f)
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(list, p), len(list), p))
}

func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.svc.ListSessions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(sessions, p), len(sessions), p))
}

type recordResponse struct {
	Session *Session `json:"session"`
	Therapy *Therapy `json:"therapy"`
}

func (h *Handler) RecordSession(c echo.Context) error {
	var in SessionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	sess, t, err := h.svc.RecordSession(ctx, c.Param("id"), in, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, recordResponse{Session: sess, Therapy: t})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.CancelTherapy(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type reassignRequest struct {
	PractitionerID string `json:"practitioner_id"`
}

func (h *Handler) Reassign(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PractitionerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "practitioner_id is required")
	}
	t, err := h.svc.ReassignTherapy(c.Request().Context(), c.Param("id"), req.PractitionerID)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}
