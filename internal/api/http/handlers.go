package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/http/client"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Fetcher fetches resources on behalf of tabs and reports breaker states.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*client.Response, error)
	BreakerStates() map[string]resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	host    *browser.Host
	gate    *tabgate.Gate // nil when gating is disabled
	fetcher Fetcher
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(host *browser.Host, gate *tabgate.Gate, fetcher Fetcher, metrics *monitoring.Metrics, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		host:    host,
		gate:    gate,
		fetcher: fetcher,
		metrics: metrics,
		log:     log,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	tabs := r.Group("/tabs")
	tabs.GET("", h.ListTabs)
	tabs.POST("", h.CreateTab)
	tabs.GET("/:id", h.GetTab)
	tabs.DELETE("/:id", h.CloseTab)
	tabs.POST("/:id/activate", h.ActivateTab)
	tabs.POST("/:id/navigate", h.NavigateTab)
	tabs.GET("/:id/document", h.GetDocument)

	r.POST("/gate/requests", h.CheckRequest)

	proxy := r.Group("/proxy")
	if h.gate != nil {
		proxy.Use(tabgate.Middleware(h.gate))
	}
	proxy.GET("", h.Proxy)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	breakers := make(map[string]string)
	for origin, state := range h.fetcher.BreakerStates() {
		breakers[origin] = state.String()
	}

	gate := gin.H{"enabled": h.gate != nil}
	if h.gate != nil {
		gate["active"] = h.gate.Active()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "cacheonhover",
		"version":  Version,
		"tabs":     len(h.host.Tabs()),
		"gate":     gate,
		"breakers": breakers,
	})
}

// Stats returns running totals
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
