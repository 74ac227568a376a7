package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PatientFacingHandler additionally serves the authenticated patient's own
// data under /me.
type PatientFacingHandler interface {
	Handler
	RegisterPatientRoutes(*gin.RouterGroup)
}

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	provisionH Handler
	patientH   PatientFacingHandler
	dietH      PatientFacingHandler
	progressH  PatientFacingHandler
	uploadH    Handler
	h          *handler.Handler
	metrics    *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimit     rate.Limit
	RateBurst     int
	CacheTTL      time.Duration
	MetricsPrefix string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	provisionH Handler,
	patientH PatientFacingHandler,
	dietH PatientFacingHandler,
	progressH PatientFacingHandler,
	uploadH Handler,
	h *handler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:     engine,
		auth:       auth,
		provisionH: provisionH,
		patientH:   patientH,
		dietH:      dietH,
		progressH:  progressH,
		uploadH:    uploadH,
		h:          h,
		metrics:    initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	if config.CacheTTL > 0 {
		engine.Use(middleware.NewResponseCache(config.CacheTTL).Cache())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.setupHealthCheck(api)

	// Everything else requires a valid bearer token.
	authed := api.Group("")
	authed.Use(r.auth.Authenticate())

	// Nutritionist-facing management routes.
	managed := authed.Group("")
	managed.Use(r.auth.RequireRole(string(model.RoleNutritionist), string(model.RoleAdmin)))
	r.provisionH.RegisterRoutes(managed)
	r.patientH.RegisterRoutes(managed)
	r.dietH.RegisterRoutes(managed)
	r.progressH.RegisterRoutes(managed)
	r.uploadH.RegisterRoutes(managed)

	// Patient-facing self-service reads.
	self := authed.Group("")
	self.Use(r.auth.RequireRole(string(model.RolePatient)))
	r.patientH.RegisterPatientRoutes(self)
	r.dietH.RegisterPatientRoutes(self)
	r.progressH.RegisterPatientRoutes(self)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
	prometheus.MustRegister(m.requestDuration, m.requestTotal, m.errorTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
