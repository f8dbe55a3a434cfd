package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fundlane/notification/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, jwtSecret, serviceSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	// Service-to-service surface, shared-secret auth
	svc := e.Group("/v1")
	svc.Use(mw.ServiceAuth(serviceSecret))
	svc.POST("/notifications", h.Enqueue)
	svc.POST("/worker/run", h.RunWorker)
	svc.GET("/jobs/failed", h.ListFailedJobs)

	// User-facing surface, JWT auth
	user := e.Group("/v1")
	user.Use(mw.JWTAuth(jwtSecret))
	user.GET("/inbox", h.ListInbox)
	user.GET("/inbox/unread-count", h.InboxUnreadCount)
	user.PATCH("/inbox/:id/read", h.MarkInboxRead)
	user.POST("/inbox/read-all", h.MarkAllInboxRead)
	user.GET("/preferences/:eventType", h.GetPreferences)
	user.PUT("/preferences/:eventType", h.UpdatePreferences)

	// SSE endpoint
	user.GET("/changes/stream", h.StreamChanges)

	return e
}
