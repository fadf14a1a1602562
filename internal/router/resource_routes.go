package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/handler"
	"github.com/iliyamo/albaranes/internal/middleware"
)

// RegisterClient mounts /api/client. The group must already authenticate.
func RegisterClient(g *echo.Group, h *handler.ClientHandler) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/archived", h.Archived)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/archive", h.Archive)
	g.PATCH("/:id/unarchive", h.Unarchive)
	g.DELETE("/:id", h.Delete)
}

// RegisterProject mounts /api/project with the same shape as clients.
func RegisterProject(g *echo.Group, h *handler.ProjectHandler) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/archived", h.Archived)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/archive", h.Archive)
	g.PATCH("/:id/unarchive", h.Unarchive)
	g.DELETE("/:id", h.Delete)
}

// RegisterDeliveryNote mounts /api/deliverynote. Signed-artifact lookups are
// cached per user and purged when the note leaves the active view.
func RegisterDeliveryNote(g *echo.Group, h *handler.DeliveryNoteHandler, cache *middleware.ArtifactCache) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/archived/list", h.Deleted)
	g.GET("/signed", h.Signed)
	g.GET("/unsigned", h.Unsigned)
	g.GET("/pdf/:id", h.PDF, cache.Lookup())
	g.PATCH("/:id/sign", h.Sign)
	g.DELETE("/:id/archive", h.SoftDelete, cache.Purge())
	g.PATCH("/:id/restore", h.Restore)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id", h.Get)
}
