package server

import (
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Synchronous summaries
	apiRoutes.POST("/summarize", routes.SummarizeHandler, middleware.Require("summary.create"))
	apiRoutes.POST("/summarize/upload", routes.SummarizeUploadHandler, middleware.Require("summary.create"))

	// Background jobs
	apiRoutes.POST("/jobs", routes.CreateJobHandler, middleware.Require("job.create"))
	apiRoutes.GET("/jobs", routes.ListJobsHandler, middleware.Require("job.view:all"))
	apiRoutes.GET("/jobs/:id", routes.GetJobHandler, middleware.Require("job.view", "job.view:all"))
	apiRoutes.GET("/jobs/:id/download", routes.GetJobDownloadHandler, middleware.Require("job.view", "job.view:all"))
}
