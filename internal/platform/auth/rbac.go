package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleDoctor = "doctor"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admins always pass.
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

// HasRole reports whether the context's user holds role, treating admin as
// holding every role.
func HasRole(ctx context.Context, role string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == role || has == RoleAdmin {
			return true
		}
	}
	return false
}

// IsAdministrative reports whether the user is front-desk staff or an admin.
func IsAdministrative(ctx context.Context) bool {
	return HasRole(ctx, RoleStaff)
}

// IsDoctor reports whether the user holds the doctor role explicitly. Admins
// are not doctors unless their token says so.
func IsDoctor(ctx context.Context) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleDoctor {
			return true
		}
	}
	return false
}
