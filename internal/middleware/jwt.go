package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/model"
)

// Authenticator resolves the principal behind a raw access token.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, allowPending bool) (*model.User, error)
}

// JWTAuth validates the Bearer access token and stores the resolved principal
// in the context. Accounts still pending verification pass only when
// allowPending is set. Failures are returned to Echo's error handler.
func JWTAuth(auth Authenticator, allowPending bool) echo.MiddlewareFunc {
	// The outer function runs once when the middleware is registered; the
	// returned handler runs for every request on the protected routes.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// An empty token (no header, or not a Bearer one) is passed on
			// as-is; Authenticate answers it with Unauthenticated.
			raw := bearer(c.Request().Header.Get(echo.HeaderAuthorization))

			// Authenticate verifies the signature, loads the user and checks
			// its status, so handlers always see a fresh record rather than
			// whatever the claims carried when the token was issued.
			u, err := auth.Authenticate(c.Request().Context(), raw, allowPending)
			if err != nil {
				return err
			}

			// Store the principal; handlers read it back with Principal(c).
			SetPrincipal(c, u)
			return next(c)
		}
	}
}

// bearer extracts the token from an Authorization header. The scheme is
// matched case-insensitively.
func bearer(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
