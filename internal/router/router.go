// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/albaranes/internal/handler"
	"github.com/iliyamo/albaranes/internal/middleware"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Users    *handler.UserHandler
	Clients  *handler.ClientHandler
	Projects *handler.ProjectHandler
	Notes    *handler.DeliveryNoteHandler

	Auth    middleware.Authenticator
	Limiter echo.MiddlewareFunc
	Cache   *middleware.ArtifactCache
	DB      handler.Pinger
}

// New builds the Echo instance with the shared middleware chain and every
// route mounted under /api.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog())
	e.Use(middleware.Recover())
	e.Use(echomw.BodyLimit("2M"))

	if d.Limiter == nil {
		d.Limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	RegisterRoutes(e, d.DB)
	api := e.Group("/api")
	RegisterUser(api.Group("/user"), d.Users, d.Auth, d.Limiter)
	RegisterClient(api.Group("/client", middleware.JWTAuth(d.Auth, false)), d.Clients)
	RegisterProject(api.Group("/project", middleware.JWTAuth(d.Auth, false)), d.Projects)
	RegisterDeliveryNote(api.Group("/deliverynote", middleware.JWTAuth(d.Auth, false)), d.Notes, d.Cache)
	return e
}

// RegisterRoutes registers the unauthenticated routes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}
