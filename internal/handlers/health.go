package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the unauthenticated liveness endpoint
type HealthHandler struct {
	env    string
	driver string
	store  Pinger
}

// NewHealthHandler creates a health handler. store may be nil when the
// backing store has no cheap reachability check.
func NewHealthHandler(env, driver string, store Pinger) *HealthHandler {
	return &HealthHandler{env: env, driver: driver, store: store}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"env":    h.env,
		"store":  h.driver,
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			logger.Ctx(c.Request.Context()).Warn("health check: store unreachable", logger.Err(err))
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}
