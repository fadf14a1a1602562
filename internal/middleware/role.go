package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/apperr"
)

// RequireRole lets the request through only when the principal's role is one
// of roles. It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := Principal(c)
			if u == nil || !allowed[u.Role] {
				return apperr.Forbidden("your role cannot perform this action")
			}
			return next(c)
		}
	}
}
