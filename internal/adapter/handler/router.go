package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-calls/pkg/config"
)

// Handlers groups every HTTP handler the router mounts. A nil handler gets
// placeholder routes.
type Handlers struct {
	Calls         *Calls
	Sessions      *Sessions
	Stream        *Stream
	Meetings      *Meeting
	Notifications *Notifications
}

// Router holds all handlers
type Router struct {
	cfg      *config.Config
	handlers Handlers
	auth     echo.MiddlewareFunc
	metrics  http.Handler
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, handlers Handlers, auth echo.MiddlewareFunc, metrics http.Handler) *Router {
	return &Router{
		cfg:      cfg,
		handlers: handlers,
		auth:     auth,
		metrics:  metrics,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)
	if rt.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(rt.metrics))
	}

	// API v1 group
	v1 := e.Group("/v1")
	if rt.auth != nil {
		v1.Use(rt.auth)
	}

	// Setup route groups
	rt.setupSessionRoutes(v1)
	rt.setupCallRoutes(v1)
	rt.setupMeetingRoutes(v1)
	rt.setupNotificationRoutes(v1)
}

// setupSessionRoutes configures sign-in and sign-out of the call session
func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessionGroup := g.Group("/sessions")

	if h := rt.handlers.Sessions; h != nil {
		sessionGroup.POST("", h.Open)
		sessionGroup.DELETE("", h.Close)
	} else {
		sessionGroup.POST("", rt.notImplemented)
		sessionGroup.DELETE("", rt.notImplemented)
	}
}

// setupCallRoutes configures incoming and outgoing call routes
func (rt *Router) setupCallRoutes(g *echo.Group) {
	callGroup := g.Group("/calls")

	if h := rt.handlers.Calls; h != nil {
		callGroup.GET("/incoming", h.Incoming)
		callGroup.POST("/incoming/accept", h.AcceptCurrent)
		callGroup.POST("/incoming/decline", h.DeclineCurrent)
		callGroup.POST("/incoming/:id/accept", h.Accept)
		callGroup.POST("/incoming/:id/decline", h.Decline)
		callGroup.POST("/leave", h.Leave)
		callGroup.GET("/outgoing", h.Outgoing)
		callGroup.POST("/outgoing/:id/cancel", h.Cancel)
	} else {
		callGroup.GET("/incoming", rt.notImplemented)
		callGroup.GET("/outgoing", rt.notImplemented)
	}

	if h := rt.handlers.Stream; h != nil {
		callGroup.GET("/stream", h.Serve)
	} else {
		callGroup.GET("/stream", rt.notImplemented)
	}
}

// setupMeetingRoutes configures meeting routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetingGroup := g.Group("/meetings")

	if h := rt.handlers.Meetings; h != nil {
		meetingGroup.POST("", h.CreateMeeting)
		meetingGroup.GET("/:id", h.GetMeeting)
		meetingGroup.POST("/:id/invitations", h.InviteMembers)
		meetingGroup.POST("/:id/reprogram", h.Reprogram)
		meetingGroup.POST("/:id/clone", h.Clone)
		meetingGroup.GET("/:id/duration", h.Duration)
	} else {
		meetingGroup.POST("", rt.notImplemented)
	}
}

// setupNotificationRoutes configures notification routes
func (rt *Router) setupNotificationRoutes(g *echo.Group) {
	if h := rt.handlers.Notifications; h != nil {
		g.GET("/notifications", h.List)
	} else {
		g.GET("/notifications", rt.notImplemented)
	}
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":   "This endpoint is not yet implemented",
		"path":    c.Request().URL.Path,
		"method":  c.Request().Method,
		"message": "Please initialize the required handler in main.go",
	})
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	environment := ""
	if rt.cfg != nil {
		environment = rt.cfg.Server.Environment
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": environment,
	})
}
