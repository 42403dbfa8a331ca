package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// Can reports whether the user holds permission.
func (u *AppUser) Can(permission string) bool {
	return u != nil && slices.Contains(u.Permissions, permission)
}

// CanAny reports whether the user holds at least one of permissions.
func (u *AppUser) CanAny(permissions ...string) bool {
	return slices.ContainsFunc(permissions, u.Can)
}

// Require rejects requests whose user holds none of permissions.
func Require(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !user.CanAny(permissions...) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "Forbidden: missing permission " + permissions[0],
				})
			}
			return next(c)
		}
	}
}
