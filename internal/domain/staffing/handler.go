package staffing

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/pkg/dates"
	"github.com/ayurclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := []string{auth.RoleDoctor, auth.RolePractitioner, auth.RoleReception}

	leaves := api.Group("/leaves", auth.RequireRole(staff...))
	leaves.POST("", h.RequestLeave)
	leaves.GET("", h.ListLeaves)
	leaves.GET("/:id", h.GetLeave)

	review := api.Group("/leaves", auth.RequireRole(auth.RoleAdmin))
	review.POST("/:id/approve", h.ApproveLeave)
	review.POST("/:id/reject", h.RejectLeave)

	g := api.Group("/staffing", auth.RequireRole(staff...))
	g.GET("/roster", h.Roster)
	g.GET("/availability", h.Availability)

	admin := api.Group("/staffing", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/reassign", h.Reassign)
}

func (h *Handler) RequestLeave(c echo.Context) error {
	var in LeaveInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := h.svc.RequestLeave(c.Request().Context(), in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

// ListLeaves shows admins every leave; other staff see only their own.
func (h *Handler) ListLeaves(c echo.Context) error {
	ctx := c.Request().Context()
	f := LeaveFilter{UserID: c.QueryParam("user_id"), Status: c.QueryParam("status")}
	if !auth.HasRole(ctx, auth.RoleAdmin) {
		f.UserID = auth.UserIDFromContext(ctx)
	}
	list, err := h.svc.ListLeaves(ctx, f)
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(list, p), len(list), p))
}

func (h *Handler) GetLeave(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := h.svc.GetLeave(ctx, c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	if l.UserID != auth.UserIDFromContext(ctx) && !auth.HasRole(ctx, auth.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "not your leave")
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ApproveLeave(c echo.Context) error {
	decision, err := h.svc.ApproveLeave(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, decision)
}

func (h *Handler) RejectLeave(c echo.Context) error {
	l, err := h.svc.RejectLeave(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Roster(c echo.Context) error {
	date := time.Now()
	if s := c.QueryParam("date"); s != "" {
		d, err := dates.Parse(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date: "+err.Error())
		}
		date = d
	}
	roster, err := h.svc.GetOnCallRoster(c.Request().Context(), date)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, roster)
}

func (h *Handler) Availability(c echo.Context) error {
	start, err := dates.Parse(c.QueryParam("start_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_date: "+err.Error())
	}
	end, err := dates.Parse(c.QueryParam("end_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end_date: "+err.Error())
	}
	out, err := h.svc.GetPractitionerAvailability(c.Request().Context(), start, end)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type reassignRequest struct {
	UserID                   string   `json:"user_id"`
	AvailablePractitionerIDs []string `json:"available_practitioner_ids"`
}

// Reassign runs the leave reassignment by hand, optionally restricted to a
// set of practitioners.
func (h *Handler) Reassign(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	res, err := h.svc.AutoAssignOnLeave(c.Request().Context(), req.UserID, req.AvailablePractitionerIDs)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}
