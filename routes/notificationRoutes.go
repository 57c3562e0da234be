package routes

import (
	"emwananchi-core/controllers"
	"emwananchi-core/middlewares"

	"github.com/gin-gonic/gin"
)

// NotificationRoutes sets up the unit notification feed
func NotificationRoutes(r *gin.Engine) {
	r.GET("/api/notifications", middlewares.AuthMiddleware(), controllers.ListNotifications)
}
