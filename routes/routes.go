package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/embedpulse/survey-server/controllers"
	"github.com/embedpulse/survey-server/middleware"
)

func SetupRoutes(r *gin.Engine) {
	r.GET("/health", controllers.HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/auth/token", controllers.IssueToken)

		surveys := api.Group("/surveys")
		surveys.Use(middleware.TenantAuth())
		{
			surveys.POST("", controllers.CreateSurvey)
			surveys.GET("/:id", controllers.GetSurveyDetail)
			surveys.PUT("/:id/publish", controllers.PublishSurvey)
			surveys.PUT("/:id/archive", controllers.ArchiveSurvey)
			surveys.GET("/:id/results", controllers.GetSurveyResults)
			surveys.GET("/:id/submissions", controllers.ListSubmissions)

			// Widget-facing endpoints; same tenant token, so a cross-tenant
			// survey id reads as not found rather than forbidden.
			surveys.GET("/:id/definition", controllers.GetDefinition)
			surveys.POST("/:id/submissions", middleware.RateLimitSubmit(), controllers.SubmitSurvey)
		}
	}
}
