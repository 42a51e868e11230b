package identity

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

// RegisterRoutes mounts the login endpoint on public and everything else on
// the authenticated api group.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	public.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me)

	users := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	users.POST("", h.CreateUser)
	users.GET("", h.ListUsers)
	users.GET("/:id", h.GetUser)
	users.PATCH("/:id/status", h.SetUserStatus)

	// Read endpoints – clinical staff and reception
	read := api.Group("/patients", auth.RequireRole(auth.RoleDoctor, auth.RolePractitioner, auth.RoleReception))
	read.GET("", h.ListPatients)
	read.GET("/:id", h.GetPatient)

	// Write endpoints – reception and admin
	write := api.Group("/patients", auth.RequireRole(auth.RoleReception))
	write.POST("", h.CreatePatient)
	write.PUT("/:id", h.UpdatePatient)
	write.POST("/:id/check-in", h.CheckInPatient)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserIDFromContext(ctx)
	u, err := h.svc.GetUser(ctx, uid)
	if err != nil {
		// The development identity has no stored record.
		if uid == auth.DevUserID {
			return c.JSON(http.StatusOK, map[string]any{"id": uid, "roles": auth.RolesFromContext(ctx)})
		}
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u.ToView())
}

// -- Users --

func (h *Handler) CreateUser(c echo.Context) error {
	var in CreateUserInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, u.ToView())
}

func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(ToViews(pagination.Page(users, p)), len(users), p))
}

func (h *Handler) GetUser(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u.ToView())
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) SetUserStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "enabled is required")
	}
	u, err := h.svc.SetUserEnabled(c.Request().Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u.ToView())
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Emergency routing happens at check-in; a registration never arrives
	// checked in.
	p.CheckedInAt = nil
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	f := PatientFilter{
		DoctorID:       c.QueryParam("doctor_id"),
		PractitionerID: c.QueryParam("practitioner_id"),
	}
	patients, err := h.svc.ListPatients(c.Request().Context(), f)
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(patients, p), len(patients), p))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var in PatientUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type checkInRequest struct {
	IsEmergency bool `json:"is_emergency"`
}

func (h *Handler) CheckInPatient(c echo.Context) error {
	var req checkInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CheckInPatient(c.Request().Context(), c.Param("id"), req.IsEmergency)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
