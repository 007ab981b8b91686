package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/andreyxaxa/Product-Composite/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/gofiber/fiber/v2"
)

// @Summary  	Get product composite
// @Description Fans out to the product, review and recommendation services and joins the results
// @Tags 		product-composite
// @Produce 	json
// @Param 		id path int true "Product ID"
// @Success 	200 {object} entity.ProductAggregate
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Product not found"
// @Failure 	503 {object} response.Error "Upstream unavailable"
// @Router 		/v1/product-composite/{id} [get]
func (r *V1) getComposite(ctx *fiber.Ctx) error {
	// 1. разбор и валидация id
	productID, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "productId must be a number")
	}

	if productID < validate.MinProductID {
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("productId must be at least %d", validate.MinProductID))
	}

	// 2. агрегирование трёх сервисов
	aggregate, err := r.composite.Aggregate(ctx.UserContext(), productID)
	if err != nil {
		return r.respondError(ctx, err, "restapi - v1 - getComposite")
	}

	// 3. ответ
	return ctx.Status(http.StatusOK).JSON(aggregate)
}

// @Summary 	Create product composite
// @Description Publishes create events for the product and each of its reviews and recommendations
// @Tags 		product-composite
// @Accept 		json
// @Produce 	json
// @Param 		request body entity.ProductAggregate true "Product aggregate"
// @Success 	202 "Accepted for asynchronous processing"
// @Failure 	400 {object} response.Error "Invalid body"
// @Failure 	503 {object} response.Error "Queue is full"
// @Router 		/v1/product-composite [post]
func (r *V1) createComposite(ctx *fiber.Ctx) error {
	// 1. разбор тела
	var aggregate entity.ProductAggregate
	if err := ctx.BodyParser(&aggregate); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid json body")
	}

	if len(aggregate.Name) > validate.MaxNameLen {
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("name cant be longer than %d characters", validate.MaxNameLen))
	}

	// 2. публикация событий
	if err := r.composite.Create(ctx.UserContext(), &aggregate); err != nil {
		return r.respondError(ctx, err, "restapi - v1 - createComposite")
	}

	// 3. принято; доставка в проекции асинхронная
	return ctx.SendStatus(http.StatusAccepted)
}

// @Summary 	Delete product composite
// @Description Publishes delete events for the product and all its reviews and recommendations
// @Tags 		product-composite
// @Param		id 	path	 int true "Product ID"
// @Success		202 "Accepted for asynchronous processing"
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	503 {object} response.Error "Queue is full"
// @Router 		/v1/product-composite/{id} [delete]
func (r *V1) deleteComposite(ctx *fiber.Ctx) error {
	productID, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "productId must be a number")
	}

	if productID < validate.MinProductID {
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("productId must be at least %d", validate.MinProductID))
	}

	if err := r.composite.Delete(ctx.UserContext(), productID); err != nil {
		return r.respondError(ctx, err, "restapi - v1 - deleteComposite")
	}

	return ctx.SendStatus(http.StatusAccepted)
}
