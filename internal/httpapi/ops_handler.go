package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerOpsRoutes exposes operational introspection for the engine itself.
// These are meant to sit behind the platform's internal ingress.
func registerOpsRoutes(r *gin.Engine, p RouterParams) {
	internal := r.Group("/internal")

	internal.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Validator.RateLimitStats())
	})

	internal.GET("/audit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Audit.Stats())
	})
}
