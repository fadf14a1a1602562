package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/model"
)

const principalKey = "principal"

func SetPrincipal(c echo.Context, u *model.User) { c.Set(principalKey, u) }

// Principal returns the authenticated user, or nil on public routes.
func Principal(c echo.Context) *model.User {
	u, _ := c.Get(principalKey).(*model.User)
	return u
}

// userID identifies the caller in rate limit and cache keys. Anonymous
// callers share "anon".
func userID(c echo.Context) string {
	if u := Principal(c); u != nil {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
