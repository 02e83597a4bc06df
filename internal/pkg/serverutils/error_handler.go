package serverutils

import (
	"context"
	"errors"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/executor"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps engine errors to HTTP status codes
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve),
		errors.Is(err, rag.ErrInvalidPreference),
		errors.Is(err, rag.ErrParseAmbiguous),
		errors.Is(err, executor.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, contract.ErrVerseNotFound):
		return fiber.StatusNotFound
	case rag.IsUnavailable(err), rag.IsGenerationFailure(err):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders err in the BaseResponse envelope
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	res := ErrorResponse(code, err.Error())

	var ve *ValidationError
	if errors.As(err, &ve) {
		res.Message = "validation failed"
		res.Errors = ve.Fields
	}
	if code == fiber.StatusInternalServerError {
		res.Message = "internal server error"
	}
	return ctx.Status(code).JSON(res)
}

// ErrorHandlerMiddleware converts errors returned by later handlers into JSON answers
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return ErrorHandler(ctx, err)
		}
		return nil
	}
}
