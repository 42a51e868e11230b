package notification

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

// RegisterRoutes mounts the caller's own notification inbox. Every
// authenticated user may read theirs.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("", h.List)
	g.POST("/read-all", h.MarkAllRead)
	g.POST("/:id/read", h.MarkRead)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListForUser(ctx, auth.UserIDFromContext(ctx), c.QueryParam("unread") == "true")
	if err != nil {
		return apperror.HTTPError(err)
	}
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, p), len(items), p))
}

func (h *Handler) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.MarkRead(ctx, auth.UserIDFromContext(ctx), c.Param("id")); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.MarkAllRead(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": n})
}
