package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/surveyops/review-api/internal/config"
	"github.com/surveyops/review-api/internal/handler"
	"github.com/surveyops/review-api/internal/middleware"
	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReviewHandler   *handler.ReviewHandler
	WorkflowHandler *handler.WorkflowHandler
	ImportHandler   *handler.ImportHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ReviewHandler != nil {
		records := api.Group("/records", jwtMiddleware)
		deps.ReviewHandler.Register(records)
	}

	if deps.WorkflowHandler != nil {
		workflowGroup := api.Group("/workflow", jwtMiddleware)
		deps.WorkflowHandler.Register(workflowGroup)
	}

	if deps.ImportHandler != nil {
		imports := api.Group("/imports", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.ImportHandler.Register(imports)
	}
}
