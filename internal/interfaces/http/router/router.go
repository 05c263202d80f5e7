// Package router assembles the admin API.
package router

import (
	"net/http"

	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/infrastructure/logger"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/antaeus/billing/internal/interfaces/http/handler"
	"github.com/antaeus/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar registers a group of routes under the versioned API prefix
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them on an engine
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Config holds the middleware settings of the admin API
type Config struct {
	ServiceName     string
	TracingEnabled  bool
	ProfileRequests bool
	// MeterProvider is nil when metrics are disabled
	MeterProvider   middleware.MeterSource
	MaxBodyBytes    int64
	TokenRatePerMin int
	TokenRateBurst  int
}

// Dependencies are the services behind the endpoints
type Dependencies struct {
	Invoices    handler.InvoiceReader
	Charger     handler.InvoiceCharger
	Events      handler.EventLog
	Customers   handler.CustomerReader
	Scheduler   handler.Scheduler
	Batches     handler.BatchMonitor
	Database    handler.Pinger
	// Tokens may be nil, which leaves the API unauthenticated
	Tokens      *auth.TokenService
	Revocations auth.Revocations
	Logger      *zap.Logger
}

// New builds the gin engine serving the admin API
func New(cfg Config, deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Tokens == nil {
		deps.Tokens = auth.NewTokenService("", "", 0)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: cfg.MeterProvider, Logger: log}),
		middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.ProfileRequests, SkipPaths: []string{"/health"}}),
		middleware.BodyLimit(cfg.MaxBodyBytes),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeNotFound, "route not found", logger.RequestID(c.Request.Context())))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponse(dto.ErrCodeBadRequest, "method not allowed", logger.RequestID(c.Request.Context())))
	})

	engine.GET("/health", handler.NewHealthHandler(deps.Database, log).Check)

	admin := middleware.AdminAuth(middleware.AdminAuthConfig{
		Tokens:      deps.Tokens,
		Revocations: deps.Revocations,
		Logger:      log,
	})

	NewRouter(engine).
		Register(&authRoutes{
			handler: handler.NewAuthHandler(deps.Tokens, deps.Revocations, log),
			limiter: middleware.NewClientRateLimiter(cfg.TokenRatePerMin, cfg.TokenRateBurst),
			admin:   admin,
		}).
		Register(&invoiceRoutes{
			handler: handler.NewInvoiceHandler(deps.Invoices, deps.Charger, deps.Events, log),
			admin:   admin,
		}).
		Register(&customerRoutes{
			handler: handler.NewCustomerHandler(deps.Customers, log),
			admin:   admin,
		}).
		Register(&billingRoutes{
			handler: handler.NewBillingHandler(deps.Scheduler, deps.Batches, log),
			admin:   admin,
		}).
		Setup()

	return engine
}

type authRoutes struct {
	handler *handler.AuthHandler
	limiter *middleware.ClientRateLimiter
	admin   gin.HandlerFunc
}

func (r *authRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/token", middleware.RateLimit(r.limiter), r.handler.Token)
	g.POST("/revoke", r.admin, r.handler.Revoke)
}

type invoiceRoutes struct {
	handler *handler.InvoiceHandler
	admin   gin.HandlerFunc
}

func (r *invoiceRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/invoices", r.admin)
	g.GET("", r.handler.List)
	g.GET("/:id", r.handler.Get)
	g.POST("/:id/charge", r.handler.Charge)
	g.GET("/:id/events", r.handler.Events)
}

type customerRoutes struct {
	handler *handler.CustomerHandler
	admin   gin.HandlerFunc
}

func (r *customerRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/customers", r.admin)
	g.GET("", r.handler.List)
	g.GET("/:id", r.handler.Get)
}

type billingRoutes struct {
	handler *handler.BillingHandler
	admin   gin.HandlerFunc
}

func (r *billingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/billing", r.admin)
	g.POST("/run", r.handler.Run)
	g.GET("/status", r.handler.Status)
	g.POST("/schedule", r.handler.Schedule)
	g.DELETE("/schedule", r.handler.Unschedule)
}
