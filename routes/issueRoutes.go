package routes

import (
	"emwananchi-core/controllers"
	"emwananchi-core/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. Listing and detail are public for
// transparency; transitions require an authenticated actor.
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api")
	{
		issue.GET("/issues", controllers.ListIssues)
		issue.GET("/issue/:id", controllers.GetIssue)
		issue.POST("/issue/:id/transition", middlewares.AuthMiddleware(), controllers.TransitionIssue)
	}
}
