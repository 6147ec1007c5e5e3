package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/services"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// NewRouter builds the gin engine with logging and recovery middleware and
// all routes registered.
func NewRouter(linkService *services.LinkService, baseURL string) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(), gin.Recovery())
	SetupRoutes(router, linkService, baseURL)
	return router
}

// NewHandler wraps the router with CORS handling for the browser frontend.
func NewHandler(router *gin.Engine, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Location"},
		MaxAge:         300,
	})(router)
}

// RequestLogger tags each request with an id (reusing a valid incoming
// X-Request-ID) and logs one line per request once it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000.0,
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "err", c.Errors.String())
		}
		logger.FromContext(c.Request.Context()).Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// ValidateShortCodeParam rejects requests whose :code parameter is not 6-8
// alphanumeric characters before they reach a handler.
func ValidateShortCodeParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !services.ValidShortCode(c.Param("code")) {
			jsonError(c, http.StatusBadRequest, "Code must be 6-8 alphanumeric characters")
			return
		}
		c.Next()
	}
}
