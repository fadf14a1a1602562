package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/handler"
	"github.com/iliyamo/albaranes/internal/middleware"
	"github.com/iliyamo/albaranes/internal/model"
)

// RegisterUser mounts the account endpoints. Credential endpoints go through
// the rate limiter; /validate accepts accounts that are still pending.
func RegisterUser(g *echo.Group, h *handler.UserHandler, auth middleware.Authenticator, limit echo.MiddlewareFunc) {
	g.POST("/register", h.Register, limit)
	g.POST("/login", h.Login, limit)
	g.POST("/forgot-password", h.ForgotPassword, limit)
	g.POST("/reset-password", h.ResetPassword, limit)
	g.POST("/refresh", h.Refresh, limit)
	g.POST("/logout", h.Logout)

	g.PUT("/validate", h.Validate, middleware.JWTAuth(auth, true), limit)

	member := g.Group("", middleware.JWTAuth(auth, false))
	member.GET("/profile", h.Profile)
	member.PATCH("/onboarding/personal", h.Personal)
	member.PATCH("/onboarding/company", h.Company)
	member.PATCH("/upload-logo", h.UploadLogo)
	member.POST("/invite", h.Invite, middleware.RequireRole(model.RoleUser))
	member.DELETE("", h.Delete)
}
