package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	promhandler "github.com/jwalitptl/care-api/internal/handler/prometheus"
	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/pkg/validator"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups the route owners. Public handlers are mounted without
// authentication.
type Handlers struct {
	Health    Handler
	Auth      Handler
	Patients  Handler
	Medicines Handler
	Files     Handler
	Admin     Handler
}

type RouterConfig struct {
	Mode          string
	CORSConfig    middleware.CORSConfig
	RateLimit     middleware.RateLimiterConfig
	SizeLimit     middleware.SizeLimitConfig
	Security      middleware.SecurityConfig
	MetricsPrefix string
	Registry      *prometheus.Registry
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *promhandler.Handler
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		validator.Configure(v)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  promhandler.New(config.MetricsPrefix, config.Registry),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		r.metrics.Middleware(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimit.Rate > 0 {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")

	// Public routes
	for _, h := range []Handler{r.handlers.Health, r.handlers.Auth} {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range []Handler{r.handlers.Patients, r.handlers.Medicines, r.handlers.Files, r.handlers.Admin} {
		if h != nil {
			h.RegisterRoutes(protected)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
