package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"user-records-api/api"
	"user-records-api/internal/adapter/gin/handler"
	"user-records-api/internal/adapter/gin/middleware"
	"user-records-api/internal/observability"
)

// Endpoints lists the public routes reported by GET /.
var Endpoints = []handler.Endpoint{
	{Method: http.MethodGet, Path: "/health", Description: "Health check"},
	{Method: http.MethodGet, Path: "/ready", Description: "Readiness check"},
	{Method: http.MethodGet, Path: "/api/users", Description: "List all users"},
	{Method: http.MethodGet, Path: "/api/users/{id}", Description: "Get user by ID"},
	{Method: http.MethodPost, Path: "/api/users", Description: "Create new user"},
	{Method: http.MethodDelete, Path: "/api/users/{id}", Description: "Delete user"},
}

// Deps carries everything the router wires. RateLimiter and Metrics may be
// nil, which disables rate limiting and /metrics respectively.
type Deps struct {
	UserHandler    *handler.UserHandler
	MetaHandler    *handler.MetaHandler
	RateLimiter    *middleware.RateLimiter
	Metrics        *observability.Metrics
	SwaggerEnabled bool
	Log            *zap.Logger
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(middleware.Recovery(d.Log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(d.Log))
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware())
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.ErrorResponse{Error: "not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handler.ErrorResponse{Error: "method not allowed"})
	})

	router.GET("/", d.MetaHandler.Index)
	router.GET("/health", d.MetaHandler.Health)
	router.GET("/ready", d.MetaHandler.Ready)

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	if d.SwaggerEnabled {
		router.GET("/docs/openapi.json", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", api.OpenAPI)
		})
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/docs/openapi.json"),
		)))
	}

	apiGroup := router.Group("/api")
	if d.RateLimiter != nil {
		apiGroup.Use(d.RateLimiter.Handler())
	}
	{
		users := apiGroup.Group("/users")
		users.GET("", d.UserHandler.ListUsers)
		users.POST("", d.UserHandler.CreateUser)
		users.GET("/:id", d.UserHandler.GetUser)
		users.DELETE("/:id", d.UserHandler.DeleteUser)
	}

	return router
}
