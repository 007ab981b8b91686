package v1

import (
	"github.com/andreyxaxa/Product-Composite/internal/usecase"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewCompositeRoutes(apiV1Group fiber.Router, composite usecase.CompositeUseCase, l logger.Interface) {
	r := &V1{composite: composite, logger: l}

	{
		// API
		apiV1Group.Get("/product-composite/:id", r.getComposite)
		apiV1Group.Post("/product-composite", r.createComposite)
		apiV1Group.Delete("/product-composite/:id", r.deleteComposite)
	}
}
