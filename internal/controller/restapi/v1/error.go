package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Product-Composite/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}

// respondError переводит таксономию ошибок в транспортные коды.
// Клиентские ошибки отдаются с сообщением, серверные прячутся за общий
// текст и уходят в лог.
func (r *V1) respondError(ctx *fiber.Ctx, err error, op string) error {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		return errorResponse(ctx, http.StatusBadRequest, publicMessage(err, "invalid request"))
	case errs.KindNotFound:
		return errorResponse(ctx, http.StatusNotFound, publicMessage(err, "not found"))
	case errs.KindMalformed:
		return errorResponse(ctx, http.StatusUnprocessableEntity, publicMessage(err, "malformed payload"))
	case errs.KindSaturated:
		return errorResponse(ctx, http.StatusServiceUnavailable, "server is busy, retry later")
	case errs.KindUnavailable:
		r.logger.Warn("%s: %v", op, err)

		return errorResponse(ctx, http.StatusServiceUnavailable, "upstream temporarily unavailable, retry later")
	default:
		r.logger.Error(err, op)

		return errorResponse(ctx, http.StatusInternalServerError, "internal problems")
	}
}

// publicMessage достаёт ближайшее прикладное сообщение из цепочки.
func publicMessage(err error, fallback string) string {
	var appErr *errs.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}

	return fallback
}
