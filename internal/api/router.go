package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Handler        *Handler
	Tokens         *TokenIssuer
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine serving /health and the /api/v1 routes.
// Callers may register further routes on the returned engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := cfg.Handler
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1", cfg.Tokens.Middleware())
	v1.POST("/plans", h.GeneratePlan)
	v1.GET("/plans", h.LatestPlan)
	v1.GET("/plans/:week", h.GetPlan)
	v1.DELETE("/plans/:week/meals/:day/:meal", h.DeleteMeal)
	v1.PUT("/profile", h.UpdateProfile)

	return r
}

// RequestID tags each request with the incoming X-Request-ID or a new UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog logs one line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("user_id", UserID(c)))
	}
}
