package routes

import (
	"emwananchi-core/controllers"
	"emwananchi-core/middlewares"

	"github.com/gin-gonic/gin"
)

// ReportRoutes sets up the citizen submission route. rateLimit <= 0
// disables the Redis limiter (MEMORY_MODE development runs).
func ReportRoutes(r *gin.Engine, rateLimit int) {
	report := r.Group("/api/report")
	{
		handlers := []gin.HandlerFunc{middlewares.AuthMiddleware()}
		if rateLimit > 0 {
			handlers = append(handlers, middlewares.ReportRateLimiter(rateLimit))
		}
		handlers = append(handlers, controllers.SubmitReport)
		report.POST("", handlers...)
	}
}
