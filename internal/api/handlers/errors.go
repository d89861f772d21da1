package handlers

import (
	"errors"

	"fintrack/internal/dto"
	"fintrack/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: ErrUnsupportedMedia wraps ErrUnprocessableDocument.
var errorMappings = []errorMapping{
	{errUnauthorized, fiber.StatusUnauthorized, "Unauthorized"},
	{models.ErrUnsupportedMedia, fiber.StatusUnsupportedMediaType, "UnsupportedMedia"},
	{models.ErrUnprocessableDocument, fiber.StatusUnprocessableEntity, "UnprocessableDocument"},
	{models.ErrJobNotFound, fiber.StatusNotFound, "JobNotFound"},
	{models.ErrDraftNotFound, fiber.StatusNotFound, "DraftNotFound"},
	{models.ErrCategoryNotFound, fiber.StatusNotFound, "CategoryNotFound"},
	{models.ErrJobNotEditable, fiber.StatusConflict, "JobNotEditable"},
	{models.ErrJobNotCommittable, fiber.StatusConflict, "JobNotCommittable"},
	{models.ErrCategoryExists, fiber.StatusConflict, "CategoryExists"},
	{models.ErrUserAlreadyExists, fiber.StatusConflict, "UserAlreadyExists"},
	{models.ErrInvalidCredentials, fiber.StatusUnauthorized, "InvalidCredentials"},
	{models.ErrCommitInProgress, fiber.StatusServiceUnavailable, "CommitInProgress"},
	{models.ErrStoreUnavailable, fiber.StatusServiceUnavailable, "StoreUnavailable"},
}

// writeError renders err as {"error", "code"} with the matching status.
// Unknown errors are logged and hidden behind a 500.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   "Validation",
			Fields: verr.Errors,
		})
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status == fiber.StatusServiceUnavailable {
				logger.Warn("Request failed", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(m.status).JSON(dto.ErrorResponse{Error: err.Error(), Code: m.code})
		}
	}

	logger.Error("Unhandled error", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Internal server error", Code: "Internal"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: message, Code: "BadRequest"})
}
