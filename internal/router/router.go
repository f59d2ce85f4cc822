package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openfield/notify-api/internal/handler"
	notificationhandler "github.com/openfield/notify-api/internal/handler/notification"
	subscriptionhandler "github.com/openfield/notify-api/internal/handler/subscription"
	userhandler "github.com/openfield/notify-api/internal/handler/user"
	"github.com/openfield/notify-api/internal/middleware"
	"github.com/openfield/notify-api/pkg/logger"
)

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	subscriptionH *subscriptionhandler.Handler
	notificationH *notificationhandler.Handler
	userH         *userhandler.Handler
	h             *handler.Handler
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	Timeout    time.Duration
	RateLimit  middleware.RateLimiterConfig
	CORS       middleware.CORSConfig
	Namespace  string
	Registerer prometheus.Registerer
}

func NewRouter(
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	subscriptionH *subscriptionhandler.Handler,
	notificationH *notificationhandler.Handler,
	userH *userhandler.Handler,
	h *handler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	engine := gin.New()

	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Router{
		engine:        engine,
		auth:          auth,
		subscriptionH: subscriptionH,
		notificationH: notificationH,
		userH:         userH,
		h:             h,
		metrics:       newRouterMetrics(config.Namespace, reg),
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(config.CORS),
		middleware.RateLimiter(config.RateLimit),
		middleware.Timeout(config.Timeout),
	)

	return r
}

// registerValidators installs the custom binding tags used by the
// request models. timeofday accepts HH:MM on a 24 hour clock.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	health := api.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}

	// Routes reachable without a token.
	r.subscriptionH.RegisterPublicRoutes(api)
	r.notificationH.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.subscriptionH.RegisterRoutes(protected)
	r.notificationH.RegisterRoutes(protected)
	r.userH.RegisterRoutes(protected)

	admin := protected.Group("")
	admin.Use(r.auth.RequireAdmin())
	r.notificationH.RegisterAdminRoutes(admin)
	r.userH.RegisterAdminRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func newRouterMetrics(namespace string, reg prometheus.Registerer) *routerMetrics {
	factory := promauto.With(reg)
	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_errors_total",
				Help:      "Total number of HTTP error responses",
			},
			[]string{"method", "path"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path).Inc()
		}
	}
}
