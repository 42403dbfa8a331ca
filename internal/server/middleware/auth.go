package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"summary.create",
	"job.create",
	"job.view",
	"job.view:all",
}

// AuthMiddleware accepts the configured API key or a JWT verified against
// the JWKS endpoint. With neither configured every request is let through
// with full permissions.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := c.(*AppContext)
		app := cc.App

		if app.APIKey == "" && app.Key == nil {
			cc.User = &AppUser{UserID: "anonymous", Role: "admin", Permissions: allPermissions}
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if app.APIKey != "" && token == app.APIKey {
			cc.User = &AppUser{UserID: "api-key", Role: "admin", Permissions: allPermissions}
			return next(c)
		}
		if app.Key == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		parsed, err := jwt.Parse(token, app.Key)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		userID, ok := claimID(claims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		var permissions []string
		if permsClaim, ok := claims["permissions"].([]any); ok {
			for _, p := range permsClaim {
				if pStr, ok := p.(string); ok {
					permissions = append(permissions, pStr)
				}
			}
		}

		if role == "admin" && len(permissions) == 0 {
			permissions = allPermissions
		}

		cc.User = &AppUser{
			UserID:      userID,
			Role:        role,
			Permissions: permissions,
		}

		return next(c)
	}
}

// claimID reads the user id from the "id" claim, falling back to "sub".
func claimID(claims jwt.MapClaims) (string, bool) {
	switch v := claims["id"].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	return "", false
}
