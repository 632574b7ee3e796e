package routes

import (
	"github.com/gin-gonic/gin"

	"golang-object-generation/internal/api/handlers"
)

func SetupRoutes(router *gin.Engine, objectHandler *handlers.ObjectHandler) {
	// Health check
	router.GET("/health", objectHandler.HealthCheck)

	objDsgn := router.Group("/obj-dsgn")
	{
		objDsgn.POST("/generations", objectHandler.CreateGeneration)

		objects := objDsgn.Group("/objects")
		{
			objects.GET("/:id", objectHandler.GetObject)
			objects.POST("/:id/cancel", objectHandler.CancelGeneration)
			objects.GET("/:id/versions/:version/content", objectHandler.GetVersionContent)
			objects.GET("/:id/versions/:version/code", objectHandler.GetVersionCode)
			objects.GET("/:id/versions/:version/snapshot", objectHandler.GetVersionSnapshot)
		}
	}
}
