package http

import (
	"context"
	"log/slog"
	nethttp "net/http"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	apiPrefix = "/api/v1"
	docsPath  = "/api/docs"
)

type RouterDeps struct {
	Log    *slog.Logger
	Config config.Config
	Users  handlers.UserService

	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	GlobalLimiter middlewares.Limiter
	CreateLimiter middlewares.Limiter

	// optional; built from Config.PhoneRegion when nil
	Validator *validator.Validate
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders(docsPath))
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))

	// ops routes sit outside the prefix and the limiter
	h := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET(docsPath, handlers.SwaggerUI)
	r.GET(docsPath+"/openapi.yaml", handlers.OpenAPISpec)

	validate := deps.Validator
	if validate == nil {
		validate = handlers.NewValidator(cfg.PhoneRegion)
	}

	usersHandler := handlers.NewUsersHandler(deps.Users, validate, cfg.PhoneRegion)

	api := r.Group(apiPrefix)
	api.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	api.Use(middlewares.RequireJSON())
	if deps.GlobalLimiter != nil {
		global := middlewares.RateLimit(deps.GlobalLimiter, "global", middlewares.KeyByIP, deps.Prom, deps.Log)
		if deps.CreateLimiter != nil {
			// the create limit replaces the global one on its route
			global = middlewares.Unless(isCreateUser, global)
		}
		api.Use(global)
	}

	createLimit := func(c *gin.Context) { c.Next() }
	if deps.CreateLimiter != nil {
		createLimit = middlewares.RateLimit(deps.CreateLimiter, "create_user", middlewares.KeyByIP, deps.Prom, deps.Log)
	}

	users := api.Group("/users")
	users.POST("", createLimit, usersHandler.CreateUser)
	users.GET("", usersHandler.ListUsers)
	users.GET("/:id", usersHandler.GetUserByID)
	users.PATCH("/:id", usersHandler.UpdateUser)
	users.DELETE("/:id", usersHandler.DeleteUser)

	return r
}

func isCreateUser(c *gin.Context) bool {
	return c.Request.Method == nethttp.MethodPost && c.FullPath() == apiPrefix+"/users"
}

// NewLimiters picks the rate limiter backend: Redis when a client is given,
// otherwise in-process counters.
func NewLimiters(cfg config.Config, rdb middlewares.Scripter) (global, create middlewares.Limiter) {
	if rdb != nil {
		return middlewares.NewRedisRateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow),
			middlewares.NewRedisRateLimiter(rdb, cfg.CreateRateLimitMax, cfg.CreateRateLimitWindow)
	}

	return middlewares.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		middlewares.NewRateLimiter(cfg.CreateRateLimitMax, cfg.CreateRateLimitWindow)
}
