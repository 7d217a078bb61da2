package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesaflow/backend/internal/interfaces/http/handler"
	"github.com/pesaflow/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	webhooks   *handler.WebhookHandler
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine) *Router {
	return &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterWebhooks attaches the provider callback handler. Webhooks live
// outside the versioned API group: their URLs are registered with the
// provider and must stay stable.
func (r *Router) RegisterWebhooks(h *handler.WebhookHandler) *Router {
	r.webhooks = h
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if r.webhooks != nil {
		r.engine.POST("/webhooks/mpesa/:integration_id", r.webhooks.MpesaCallback)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
