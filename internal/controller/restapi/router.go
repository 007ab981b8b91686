package restapi

import (
	"github.com/andreyxaxa/Product-Composite/config"
	v1 "github.com/andreyxaxa/Product-Composite/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Product-Composite/internal/usecase"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Product Composite
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(app *fiber.App, cfg *config.Config, composite usecase.CompositeUseCase, l logger.Interface) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewCompositeRoutes(apiV1Group, composite, l)
	}
}
