// Package v1 wires the HTTP API surface.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventra/internal/infrastructure/http/v1/handlers"
	"inventra/internal/infrastructure/http/v1/middleware"
)

// RouterConfig carries the dependencies of the HTTP router.
type RouterConfig struct {
	JWTSecret string
	Release   bool

	Materials *handlers.MaterialHandler
	Movements *handlers.MovementHandler
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))

	cfg.Materials.Register(api.Group("/materials"))
	cfg.Movements.Register(api.Group("/movements"))

	return r
}
