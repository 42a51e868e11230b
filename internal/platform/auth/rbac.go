package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range roles {
				if HasRole(ctx, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// ValidRole reports whether role is one of the known clinic roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RolePractitioner, RoleReception, RolePatient:
		return true
	}
	return false
}
