package router

import (
	"cdi-tracker/internal/api/handlers"
	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries what the router serves. Registry may be nil, in which
// case no metrics are collected or exposed.
type Options struct {
	Bus          *ipc.Bus
	HealthChecks map[string]handlers.Check
	Registry     *prometheus.Registry
	AllowOrigins []string
}

func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(corsMiddleware(opts.AllowOrigins))
	r.Use(gin.Recovery())

	if opts.Registry != nil {
		metrics := middleware.NewMetrics(opts.Registry)
		r.Use(metrics.Handler())
		opts.Bus.Observe(metrics.ObserveCall)
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	healthHandler := handlers.NewHealthHandler(opts.HealthChecks)
	ipcHandler := handlers.NewIPCHandler(opts.Bus)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	v1 := r.Group("/api/v1")
	{
		channels := v1.Group("/ipc")
		{
			channels.GET("", ipcHandler.Channels)
			channels.POST("/:channel", ipcHandler.Invoke)
		}
	}
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowHeaders = append(cfg.AllowHeaders, middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	return cors.New(cfg)
}
