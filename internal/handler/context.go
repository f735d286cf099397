package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storeforge/scanapi/internal/middleware"
	"github.com/storeforge/scanapi/internal/service"
)

// actorFrom builds the caller identity set by the JWT middleware.
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetString(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextUserRole),
	}
}
