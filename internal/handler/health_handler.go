package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"

    "github.com/storeforge/scanapi/internal/utils"
)

var startTime = time.Now()

// DBPinger is satisfied by *sqlx.DB.
type DBPinger interface {
    PingContext(ctx context.Context) error
}

// CachePinger is satisfied by *cache.RedisClient.
type CachePinger interface {
    Ping(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
    db    DBPinger
    cache CachePinger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil.
func NewHealthHandler(db DBPinger, cache CachePinger) *HealthHandler {
    return &HealthHandler{db: db, cache: cache}
}

// GetHealth responds with database and cache status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
    ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
    defer cancel()

    dbStatus := "connected"
    if err := h.db.PingContext(ctx); err != nil {
        dbStatus = "disconnected"
    }

    cacheStatus := "disabled"
    if h.cache != nil {
        cacheStatus = "connected"
        if err := h.cache.Ping(ctx); err != nil {
            cacheStatus = "disconnected"
        }
    }

    details := gin.H{
        "version":  "1.0.0",
        "uptime":   int(time.Since(startTime).Seconds()),
        "database": dbStatus,
        "redis":    cacheStatus,
    }

    if dbStatus != "connected" {
        details["status"] = "unhealthy"
        utils.ErrorWithDetails(c, http.StatusServiceUnavailable, utils.CodeInternal, "Database unavailable", details)
        return
    }

    details["status"] = "healthy"
    if cacheStatus == "disconnected" {
        details["status"] = "degraded"
    }
    utils.Success(c, http.StatusOK, "Service is healthy", details)
}
